package model

import "time"

// Config holds all pipeline configuration with documented defaults.
// There is no hidden global state: every component receives the section
// it needs as an explicit parameter.
type Config struct {
	Extract    ExtractConfig    `yaml:"extract" json:"extract"`
	Embedding  EmbeddingConfig  `yaml:"embedding" json:"embedding"`
	Clustering ClusteringConfig `yaml:"clustering" json:"clustering"`
	Validation ValidationConfig `yaml:"validation" json:"validation"`
	Coalition  CoalitionConfig  `yaml:"coalition" json:"coalition"`
	Brief      BriefConfig      `yaml:"brief" json:"brief"`
	HTTP       HTTPConfig       `yaml:"http" json:"http"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	LLM        LLMConfig        `yaml:"llm" json:"llm"`
	Output     OutputConfig     `yaml:"output" json:"output"`
}

// ExtractConfig controls structure extraction
type ExtractConfig struct {
	MaxCommentBytes int `yaml:"max_comment_bytes" json:"max_comment_bytes"` // Hard input ceiling; above this is caller misuse
	MinTokens       int `yaml:"min_tokens" json:"min_tokens"`               // Below this, extraction degrades to an empty argument
	Workers         int `yaml:"workers" json:"workers"`                     // Batch extraction worker count
}

// EmbeddingConfig controls vector computation
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider" json:"provider"`     // "hashing" (local, deterministic) or "openai"
	Model      string        `yaml:"model" json:"model"`           // Remote model name, openai only
	Dimensions int           `yaml:"dimensions" json:"dimensions"` // Vector width for the hashing provider
	BatchSize  int           `yaml:"batch_size" json:"batch_size"` // Items per remote batch call
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`       // Per remote call
}

// ClusteringConfig controls the clustering service
type ClusteringConfig struct {
	Method               string `yaml:"method" json:"method"`                               // "kmeans" or "hierarchical"
	MaxClusters          int    `yaml:"max_clusters" json:"max_clusters"`                   // 0 means use the sqrt(n/2) heuristic
	MinClusterSize       int    `yaml:"min_cluster_size" json:"min_cluster_size"`           // Smaller clusters merge into the nearest neighbor
	MaxIterations        int    `yaml:"max_iterations" json:"max_iterations"`               // K-means iteration cap
	Seed                 int64  `yaml:"seed" json:"seed"`                                   // Fixed seed for reproducible runs
	RepresentativeClaims int    `yaml:"representative_claims" json:"representative_claims"` // Claims kept per cluster, nearest members first
}

// ValidationConfig controls evidence validation
type ValidationConfig struct {
	Concurrency      int           `yaml:"concurrency" json:"concurrency"`         // Concurrent validations
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`                 // Per external lookup
	ProbeCitations   bool          `yaml:"probe_citations" json:"probe_citations"` // HTTP-probe cited URLs for reachability
	PrimaryDomains   []string      `yaml:"primary_domains" json:"primary_domains"` // Authority overrides; empty means built-in defaults
	SecondaryDomains []string      `yaml:"secondary_domains" json:"secondary_domains"`
}

// CoalitionConfig controls cross-cluster relationship detection
type CoalitionConfig struct {
	MinStrength    float64 `yaml:"min_strength" json:"min_strength"`       // Pairs below this are not reported
	SharedEvidence float64 `yaml:"shared_evidence" json:"shared_evidence"` // Same-position similarity floor
	LexicalWeight  float64 `yaml:"lexical_weight" json:"lexical_weight"`   // Claim-overlap share of pair strength
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"` // Centroid-similarity share of pair strength
}

// BriefConfig controls brief generation
type BriefConfig struct {
	MinorityCohesion float64 `yaml:"minority_cohesion" json:"minority_cohesion"`   // Clusters at or above this are always retained
	MajorityShare    float64 `yaml:"majority_share" json:"majority_share"`         // Size share below which a cluster counts as minority
	EvidenceDedup    float64 `yaml:"evidence_dedup" json:"evidence_dedup"`         // Similarity above this merges evidence items
	TopEvidenceLimit int     `yaml:"top_evidence_limit" json:"top_evidence_limit"` // Max entries in top evidence
}

// HTTPConfig controls outbound HTTP, used by the citation prober
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent    string        `yaml:"user_agent" json:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" json:"max_body_bytes"`
	InsecureTLS  bool          `yaml:"insecure_tls" json:"insecure_tls"`
	RatePerHost  float64       `yaml:"rate_per_host" json:"rate_per_host"` // Requests per second per host
	HTTPProxy    string        `yaml:"http_proxy" json:"http_proxy"`       // Empty falls back to the environment
	HTTPSProxy   string        `yaml:"https_proxy" json:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy" json:"no_proxy"`
}

// CacheConfig controls the embedding cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Dir     string        `yaml:"dir" json:"dir"` // Empty means ~/.mjadala/cache
	TTL     time.Duration `yaml:"ttl" json:"ttl"`
}

// StoreConfig controls the generation store
type StoreConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"` // SQLite file; empty means ~/.mjadala/mjadala.db
}

// LLMConfig controls the optional narrative generator
type LLMConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	Provider       string        `yaml:"provider" json:"provider"` // openai
	Model          string        `yaml:"model" json:"model"`
	APIKey         string        `yaml:"-" json:"-"` // From environment only, never persisted
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	StrictEvidence bool          `yaml:"strict_evidence" json:"strict_evidence"` // Narrative may only cite provided claims
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" json:"verbose"`
	IncludeFooter bool `yaml:"include_footer" json:"include_footer"`
}

// DefaultConfig returns the documented default configuration
func DefaultConfig() Config {
	return Config{
		Extract: ExtractConfig{
			MaxCommentBytes: 50_000,
			MinTokens:       10,
			Workers:         4,
		},
		Embedding: EmbeddingConfig{
			Provider:   "hashing",
			Model:      "text-embedding-3-small",
			Dimensions: 256,
			BatchSize:  64,
			Timeout:    30 * time.Second,
		},
		Clustering: ClusteringConfig{
			Method:               "kmeans",
			MaxClusters:          0,
			MinClusterSize:       2,
			MaxIterations:        50,
			Seed:                 1,
			RepresentativeClaims: 3,
		},
		Validation: ValidationConfig{
			Concurrency:    8,
			Timeout:        10 * time.Second,
			ProbeCitations: false,
		},
		Coalition: CoalitionConfig{
			MinStrength:    0.55,
			SharedEvidence: 0.45,
			LexicalWeight:  0.4,
			SemanticWeight: 0.6,
		},
		Brief: BriefConfig{
			MinorityCohesion: 0.6,
			MajorityShare:    0.15,
			EvidenceDedup:    0.9,
			TopEvidenceLimit: 10,
		},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "Mjadala/0.1 (+https://github.com/chanuka/mjadala)",
			MaxBodyBytes: 2_000_000,
			InsecureTLS:  false,
			RatePerHost:  1.0,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     "",
			TTL:     14 * 24 * time.Hour,
		},
		Store: StoreConfig{
			Enabled: false,
			Path:    "",
		},
		LLM: LLMConfig{
			Enabled:        false,
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			StrictEvidence: true,
			Timeout:        60 * time.Second,
		},
		Output: OutputConfig{
			Verbose:       false,
			IncludeFooter: true,
		},
	}
}
