package model

import "time"

// Evidence represents a quoted or referenced factual assertion within an Argument
type Evidence struct {
	Text       string        `json:"text"`                 // The evidence text span
	SourceType SourceType    `json:"source_type"`          // citation, statistic, personal_experience, anecdote
	SourceURL  string        `json:"source_url,omitempty"` // Cited URL, when the span contains one
	Sentence   int           `json:"sentence,omitempty"`   // Sentence index in source (0-based)
	ClaimIndex int           `json:"claim_index"`          // Claim this evidence was associated with (-1 if none)
	Authority  AuthorityTier `json:"authority,omitempty"`  // Source authority classification

	// CredibilityScore is set once by the validator and immutable afterwards;
	// re-validation produces a new snapshot rather than overwriting.
	CredibilityScore *float64              `json:"credibility_score,omitempty"`
	ScoreHistory     []CredibilitySnapshot `json:"score_history,omitempty"` // Prior validation snapshots
}

// Scored reports whether the validator has set a credibility score.
func (e *Evidence) Scored() bool {
	return e.CredibilityScore != nil
}

// CredibilitySnapshot records one validation pass over an Evidence item
type CredibilitySnapshot struct {
	Score     float64   `json:"score"`
	ScoredAt  time.Time `json:"scored_at"`
	Signals   []string  `json:"signals,omitempty"`  // Which text features fired
	FactCheck bool      `json:"fact_check"`         // Whether an external hint contributed
	Degraded  bool      `json:"degraded,omitempty"` // External collaborator was unavailable
}

// SourceType classifies the kind of evidence
type SourceType string

const (
	SourceCitation   SourceType = "citation"            // Reference to a named or linked source
	SourceStatistic  SourceType = "statistic"           // Numeric or quantified assertion
	SourceExperience SourceType = "personal_experience" // First-person account
	SourceAnecdote   SourceType = "anecdote"            // Second-hand or unattributed story
)

// AuthorityTier represents the classification of a cited source's authority
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // Not yet classified
	TierPrimary   AuthorityTier = 1 // Statutes, gazettes, parliamentary records, court rulings
	TierSecondary AuthorityTier = 2 // Major media, research institutes, encyclopedias
	TierTertiary  AuthorityTier = 3 // Blogs, forums, personal websites
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}

// CitationCheck contains the result of probing a cited URL for reachability
type CitationCheck struct {
	URL          string        `json:"url"`
	IsAccessible bool          `json:"is_accessible"`
	StatusCode   int           `json:"status_code,omitempty"`
	IsDead       bool          `json:"is_dead"`                // Definitive 404 or 410 response
	RedirectURL  string        `json:"redirect_url,omitempty"` // If redirected
	Authority    AuthorityTier `json:"authority"`
	Error        string        `json:"error,omitempty"`
}
