package model

import "time"

// Argument represents one citizen's structured position on one bill.
// It is either raw (claims/evidence empty, ProcessedAt nil) or processed
// (fully populated); partial states never persist.
type Argument struct {
	ID        string `json:"id"`         // Unique identifier
	BillID    string `json:"bill_id"`    // Bill the comment addresses
	AuthorID  string `json:"author_id"`  // Comment author
	CommentID string `json:"comment_id"` // Source comment

	Claims         []Claim    `json:"claims"`                    // Ordered extracted claims
	Evidence       []Evidence `json:"evidence"`                  // Evidence items supporting claims (may be empty)
	Position       Position   `json:"position"`                  // Derived stance, never user-entered
	ReasoningChain []string   `json:"reasoning_chain,omitempty"` // Text spans linking evidence to claims
	Strength       float64    `json:"strength"`                  // Derived quality score in [0,1]

	CommentText string     `json:"comment_text,omitempty"` // Raw text, kept for embedding fallback
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"` // Nil until extraction completes

	Error string `json:"error,omitempty"` // Batch error marker; set instead of aborting the batch
}

// IsProcessed reports whether extraction completed for this argument.
func (a *Argument) IsProcessed() bool {
	return a.ProcessedAt != nil
}

// ClaimTexts returns the claim texts in order, for embedding and overlap checks.
func (a *Argument) ClaimTexts() []string {
	texts := make([]string, 0, len(a.Claims))
	for _, c := range a.Claims {
		texts = append(texts, c.Text)
	}
	return texts
}

// Claim represents a single assertion extracted from a comment
type Claim struct {
	Text     string    `json:"text"`               // The claim text itself
	Type     ClaimType `json:"type"`               // factual, normative, predictive
	Sentence int       `json:"sentence,omitempty"` // Sentence index in source (0-based)
	Polarity int       `json:"polarity"`           // -1 oppose, 0 neutral, +1 support
}

// ClaimType categorizes the nature of the claim
type ClaimType string

const (
	ClaimTypeFactual    ClaimType = "factual"    // Asserts a verifiable state of the world
	ClaimTypeNormative  ClaimType = "normative"  // Asserts what should or must be
	ClaimTypePredictive ClaimType = "predictive" // Asserts a future consequence
)

// Position is the derived stance of an argument or cluster on a bill
type Position string

const (
	PositionSupport Position = "support"
	PositionOppose  Position = "oppose"
	PositionNeutral Position = "neutral"
	PositionMixed   Position = "mixed" // No claim polarity reaches a majority
)
