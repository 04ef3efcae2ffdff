package model

import "time"

// LegislativeBrief is the terminal artifact of a pipeline run: a ranked,
// deduplicated summary of the viewpoints on one bill. A brief is immutable
// once generated; new comments trigger full regeneration, never a patch.
type LegislativeBrief struct {
	BillID      string    `json:"bill_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Generation  int64     `json:"generation"` // Clustering generation this brief was built from

	ClusterSummaries   []ClusterSummary `json:"cluster_summaries"`   // Ordered by size × cohesion, ties by cluster id
	Coalitions         []Coalition      `json:"coalitions"`          // Cross-cluster relationships
	TopEvidence        []RankedEvidence `json:"top_evidence"`        // Deduplicated, ranked by credibility
	MinorityViewpoints []ClusterSummary `json:"minority_viewpoints"` // Small but coherent clusters, retained by policy

	AggregateStrength float64  `json:"aggregate_strength"` // Mean argument strength across the run (0-1)
	Confidence        string   `json:"confidence"`         // "low", "medium", "high"
	Signals           []Signal `json:"signals,omitempty"`  // Diagnostic signals with transparent data

	RunMeta    RunMeta    `json:"run_meta"`   // Input and degradation counts for the run
	Principles Principles `json:"principles"` // Core principles applied

	Narrative *Narrative `json:"narrative,omitempty"` // Optional LLM prose (separate, never affects ranking)
}

// ClusterSummary is one viewpoint entry in a brief
type ClusterSummary struct {
	ClusterID            string   `json:"cluster_id"`
	Position             Position `json:"position"`
	Size                 int      `json:"size"`
	Cohesion             float64  `json:"cohesion"`
	Weight               float64  `json:"weight"` // size × cohesion, the ordering key
	RepresentativeClaims []string `json:"representative_claims"`
	Summary              string   `json:"summary"` // Template-built one-paragraph description
}

// RankedEvidence is a deduplicated evidence entry with its final rank
type RankedEvidence struct {
	Evidence   Evidence `json:"evidence"`
	Rank       int      `json:"rank"`                 // 1-based position after ranking
	Duplicates int      `json:"duplicates,omitempty"` // Near-identical items merged into this one
}

// RunMeta records what went into a pipeline run and what degraded along the way
type RunMeta struct {
	CommentCount        int    `json:"comment_count"`
	ArgumentCount       int    `json:"argument_count"`
	FailedExtractions   int    `json:"failed_extractions,omitempty"`
	EvidenceCount       int    `json:"evidence_count"`
	DegradedValidations int    `json:"degraded_validations,omitempty"` // Scored without the external collaborator
	Method              string `json:"method"`                         // kmeans or hierarchical
	Seed                int64  `json:"seed"`                           // Clustering seed, for reproducibility
}

// Signal represents a diagnostic signal with transparent generation data
type Signal struct {
	Type        SignalType             `json:"type"`           // Signal classification
	Severity    SignalSeverity         `json:"severity"`       // info, warning, critical
	Description string                 `json:"description"`    // Human-readable description
	Data        map[string]interface{} `json:"data,omitempty"` // Transparent inputs and formulas
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalExtractionFailures  SignalType = "extraction_failures"   // Comments that failed structure extraction
	SignalValidationDegraded  SignalType = "validation_degraded"   // Evidence scored without fact-check lookups
	SignalLowEvidenceCoverage SignalType = "low_evidence_coverage" // Few evidence items per claim
	SignalSparseDataset       SignalType = "sparse_dataset"        // Too few arguments for stable clustering
	SignalMinorityRetained    SignalType = "minority_retained"     // Coherent small clusters kept in the brief
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// Principles documents which design principles were applied to the brief
type Principles struct {
	MinorityPreserving bool `json:"minority_preserving"` // Coherent small clusters are never dropped
	Transparent        bool `json:"transparent"`         // All ranking and scoring explainable
	Deterministic      bool `json:"deterministic"`       // Same inputs and seed produce the same brief
}

// DefaultPrinciples returns the standard Mjadala principles
func DefaultPrinciples() Principles {
	return Principles{
		MinorityPreserving: true,
		Transparent:        true,
		Deterministic:      true,
	}
}

// Narrative contains optional LLM-generated prose for a brief.
// CRITICAL: this never affects ranking or scoring and is clearly separated.
type Narrative struct {
	Enabled        bool     `json:"enabled"`
	Provider       string   `json:"provider,omitempty"` // openai
	Model          string   `json:"model,omitempty"`    // Model name
	StrictEvidence bool     `json:"strict_evidence"`    // Whether citation enforcement was enabled
	SummaryMD      string   `json:"summary_md,omitempty"`
	Warnings       []string `json:"warnings,omitempty"` // e.g. citation leaks detected
}
