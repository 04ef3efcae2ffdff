package extract

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/chanuka/mjadala/internal/model"
	"github.com/chanuka/mjadala/internal/worker"
	"github.com/google/uuid"
)

// sentenceRole is the classification assigned to each sentence
type sentenceRole int

const (
	roleNeither sentenceRole = iota
	roleClaim
	roleEvidence
	roleReasoning
)

// Strength weights. Named so the derivation stays transparent.
const (
	weightClaims      = 0.35
	weightEvidence    = 0.30
	weightCredibility = 0.20
	weightReasoning   = 0.15
)

// StructureExtractor parses free-text citizen comments into structured
// arguments. Extraction is a pure function over the input text: it never
// touches storage and never fails for valid non-empty input.
type StructureExtractor struct {
	cfg model.ExtractConfig

	supportWords    []string
	opposeWords     []string
	reasoningStarts []string
	citationFrames  []string
	experienceMarks []string
	anecdoteMarks   []string
}

// NewStructureExtractor creates an extractor with the default lexicons
func NewStructureExtractor(cfg model.ExtractConfig) *StructureExtractor {
	if cfg.MaxCommentBytes <= 0 {
		cfg.MaxCommentBytes = 50_000
	}
	if cfg.MinTokens <= 0 {
		cfg.MinTokens = 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	return &StructureExtractor{
		cfg: cfg,
		supportWords: []string{
			"support", "benefit", "help", "improve", "protect", "strengthen",
			"welcome", "endorse", "favor", "favour", "boost", "empower",
			"enable", "promote", "uplift", "commend", "good for",
		},
		opposeWords: []string{
			"violate", "oppose", "against", "harm", "hurt", "restrict",
			"unconstitutional", "reject", "dangerous", "threaten", "undermine",
			"burden", "destroy", "punish", "unfair", "unjust", "exploit",
			"discriminate", "erode", "cripple", "worsen", "disagree",
		},
		reasoningStarts: []string{
			"therefore", "because", "thus", "hence", "consequently",
			"as a result", "this means", "this shows", "that is why",
			"which is why", "it follows that",
		},
		citationFrames: []string{
			"according to", "a study", "the study", "studies", "research",
			"a report", "the report", "reports", "data from", "statistics",
			"a survey", "the survey", "surveys", "figures from",
			"the world bank", "knbs", "the auditor general",
		},
		experienceMarks: []string{
			"in my experience", "i have seen", "i have witnessed", "i run a",
			"i own a", "i operate", "my business has", "our business has",
			"my family has", "our community has", "as a small business owner",
			"as a farmer", "as a trader", "as a teacher",
		},
		anecdoteMarks: []string{
			"i heard", "people say", "they say", "a friend", "someone told",
			"my neighbour", "my neighbor", "rumour has it", "rumor has it",
			"word is that",
		},
	}
}

// Extract parses one comment into a structured Argument. Thin comments
// degrade to an empty argument with zero strength rather than failing;
// only empty or oversized text returns model.ErrInvalidInput, signaling
// caller misuse.
func (e *StructureExtractor) Extract(commentText, billID, authorID string) (*model.Argument, error) {
	return e.extractOne(model.Comment{Text: commentText, BillID: billID, AuthorID: authorID})
}

func (e *StructureExtractor) extractOne(c model.Comment) (*model.Argument, error) {
	trimmed := strings.TrimSpace(c.Text)
	if trimmed == "" {
		return nil, fmt.Errorf("extract: empty comment text: %w", model.ErrInvalidInput)
	}
	if len(c.Text) > e.cfg.MaxCommentBytes {
		return nil, fmt.Errorf("extract: comment exceeds %d bytes: %w", e.cfg.MaxCommentBytes, model.ErrInvalidInput)
	}

	now := time.Now().UTC()
	arg := &model.Argument{
		ID:          uuid.NewString(),
		BillID:      c.BillID,
		AuthorID:    c.AuthorID,
		CommentID:   c.ID,
		CommentText: trimmed,
		Claims:      []model.Claim{},
		Evidence:    []model.Evidence{},
		Position:    model.PositionNeutral,
		CreatedAt:   now,
	}

	text := stripMarkup(trimmed)

	// Extremely short comments produce an empty argument rather than an
	// error: there is nothing to structure, but the author still counts.
	if len(tokenize(text)) < e.cfg.MinTokens {
		arg.ProcessedAt = &now
		return arg, nil
	}

	sentences := splitSentences(text)

	// 1. Classify every sentence as claim / evidence / reasoning / neither
	roles := make([]sentenceRole, len(sentences))
	for i, s := range sentences {
		roles[i] = e.classifySentence(s)
	}

	// 2. Collect claims with type and polarity
	for i, s := range sentences {
		if roles[i] != roleClaim {
			continue
		}
		arg.Claims = append(arg.Claims, model.Claim{
			Text:     s,
			Type:     classifyClaimType(s),
			Sentence: i,
			Polarity: e.claimPolarity(s),
		})
	}
	arg.Claims = dedupeClaims(arg.Claims)

	claimSentences := make([]int, len(arg.Claims))
	for i, claim := range arg.Claims {
		claimSentences[i] = claim.Sentence
	}

	// 3. Collect evidence spans, each associated with the nearest claim
	for i, s := range sentences {
		if roles[i] != roleEvidence {
			continue
		}
		lower := strings.ToLower(s)
		urls, legalRefs := scanReferences(s)
		ev := model.Evidence{
			Text:       s,
			SourceType: e.classifySourceType(lower, len(urls) > 0, len(legalRefs) > 0),
			Sentence:   i,
			ClaimIndex: nearestClaim(i, claimSentences, associationWindow),
		}
		if len(urls) > 0 {
			ev.SourceURL = urls[0]
		}
		arg.Evidence = append(arg.Evidence, ev)
	}

	// 4. Claim sentences with embedded references ("violates Article 28")
	// also yield citation evidence tied to that claim.
	for ci, claim := range arg.Claims {
		urls, legalRefs := scanReferences(claim.Text)
		if len(urls) == 0 && len(legalRefs) == 0 {
			continue
		}
		ev := model.Evidence{
			Text:       claim.Text,
			SourceType: model.SourceCitation,
			Sentence:   claim.Sentence,
			ClaimIndex: ci,
		}
		if len(urls) > 0 {
			ev.SourceURL = urls[0]
		}
		arg.Evidence = append(arg.Evidence, ev)
	}
	arg.Evidence = dedupeEvidence(arg.Evidence)

	// 5. Reasoning connectives form the chain, in sentence order
	for i, s := range sentences {
		if roles[i] == roleReasoning {
			arg.ReasoningChain = append(arg.ReasoningChain, s)
		}
	}

	// 6. Derive position and strength from the assembled structure
	arg.Position = derivePosition(arg.Claims)
	arg.Strength = deriveStrength(arg)
	arg.ProcessedAt = &now

	return arg, nil
}

// classifySentence assigns the dominant role of one sentence. Evidence
// framing wins over the claim fallback, but a stance assertion that
// merely mentions a statute ("violates Article 28") stays a claim.
func (e *StructureExtractor) classifySentence(s string) sentenceRole {
	tokens := tokenize(s)
	if len(tokens) < 3 || strings.HasSuffix(strings.TrimSpace(s), "?") {
		return roleNeither
	}

	lower := strings.ToLower(s)
	for _, marker := range e.reasoningStarts {
		if strings.HasPrefix(lower, marker) {
			return roleReasoning
		}
	}

	if e.isEvidenceSentence(lower, tokens) {
		return roleEvidence
	}

	return roleClaim
}

// isEvidenceSentence reports whether the sentence's dominant function is
// citing rather than asserting
func (e *StructureExtractor) isEvidenceSentence(lower string, tokens []string) bool {
	for _, frame := range e.citationFrames {
		if strings.HasPrefix(lower, frame) {
			return true
		}
	}
	if strings.Contains(lower, "http://") || strings.Contains(lower, "https://") {
		return true
	}
	for _, m := range e.experienceMarks {
		if strings.Contains(lower, m) {
			return true
		}
	}
	for _, m := range e.anecdoteMarks {
		if strings.Contains(lower, m) {
			return true
		}
	}
	// Number-dense sentences read as statistics
	if strings.Contains(lower, "%") || strings.Contains(lower, " percent") {
		return true
	}
	return numericTokens(tokens) >= 2
}

// classifyClaimType types a claim by its modality: deontic markers make
// it normative, future modals make it predictive, otherwise factual.
func classifyClaimType(s string) model.ClaimType {
	for _, t := range tokenize(s) {
		switch t {
		case "should", "must", "ought", "shall":
			return model.ClaimTypeNormative
		}
	}
	for _, t := range tokenize(s) {
		switch t {
		case "will", "would", "could", "may", "might", "risks":
			return model.ClaimTypePredictive
		}
	}
	return model.ClaimTypeFactual
}

// claimPolarity scores a claim's stance from the support and oppose
// lexicons: +1 support, -1 oppose, 0 neutral
func (e *StructureExtractor) claimPolarity(s string) int {
	lower := strings.ToLower(s)
	score := 0
	for _, w := range e.supportWords {
		if strings.Contains(lower, w) {
			score++
		}
	}
	for _, w := range e.opposeWords {
		if strings.Contains(lower, w) {
			score--
		}
	}

	switch {
	case score > 0:
		return 1
	case score < 0:
		return -1
	}
	return 0
}

// derivePosition takes a majority vote of claim-level polarity. Ties and
// all-neutral claims resolve to neutral, never to a guessed stance.
func derivePosition(claims []model.Claim) model.Position {
	var pos, neg int
	for _, c := range claims {
		switch {
		case c.Polarity > 0:
			pos++
		case c.Polarity < 0:
			neg++
		}
	}

	switch {
	case pos > neg:
		return model.PositionSupport
	case neg > pos:
		return model.PositionOppose
	}
	return model.PositionNeutral
}

// deriveStrength combines claim count, evidence count, a credibility
// proxy, and reasoning coverage into one [0,1] score. The evidence
// validator later computes authoritative credibility; this proxy only
// feeds argument strength.
func deriveStrength(arg *model.Argument) float64 {
	if len(arg.Claims) == 0 {
		return 0
	}

	claimsNorm := math.Min(1, float64(len(arg.Claims))/3)
	evidenceNorm := math.Min(1, float64(len(arg.Evidence))/2)

	credNorm := 0.0
	if len(arg.Evidence) > 0 {
		total := 0.0
		for _, ev := range arg.Evidence {
			total += credibilityProxy(ev.SourceType)
		}
		credNorm = total / float64(len(arg.Evidence))
	}

	reasoningNorm := math.Min(1, float64(len(arg.ReasoningChain))/float64(len(arg.Claims)))

	return weightClaims*claimsNorm + weightEvidence*evidenceNorm +
		weightCredibility*credNorm + weightReasoning*reasoningNorm
}

// credibilityProxy orders source types by how verifiable they usually are
func credibilityProxy(t model.SourceType) float64 {
	switch t {
	case model.SourceCitation:
		return 0.9
	case model.SourceStatistic:
		return 0.7
	case model.SourceExperience:
		return 0.5
	default:
		return 0.3
	}
}

// dedupeClaims removes duplicate claims, keeping the first occurrence
func dedupeClaims(claims []model.Claim) []model.Claim {
	seen := make(map[string]bool)
	unique := claims[:0]

	for _, claim := range claims {
		key := strings.ToLower(strings.TrimSpace(claim.Text))
		if !seen[key] {
			seen[key] = true
			unique = append(unique, claim)
		}
	}

	return unique
}

// dedupeEvidence removes duplicate evidence spans, keeping the first
func dedupeEvidence(evidence []model.Evidence) []model.Evidence {
	seen := make(map[string]bool)
	unique := evidence[:0]

	for _, ev := range evidence {
		key := strings.ToLower(strings.TrimSpace(ev.Text)) + "|" + ev.SourceURL
		if !seen[key] {
			seen[key] = true
			unique = append(unique, ev)
		}
	}

	return unique
}

// extractJob wraps one comment for the worker pool, carrying its input
// index so results reassemble in input order
type extractJob struct {
	index     int
	comment   model.Comment
	extractor *StructureExtractor
}

// Execute runs extraction for one comment
func (j *extractJob) Execute(ctx context.Context) worker.Result {
	arg, err := j.extractor.extractOne(j.comment)
	return &extractResult{index: j.index, argument: arg, err: err}
}

type extractResult struct {
	index    int
	argument *model.Argument
	err      error
}

// GetError returns the extraction error, if any
func (r *extractResult) GetError() error { return r.err }

// ExtractBatch processes comments independently on a worker pool. A
// failure on one item never aborts the batch: failed items come back as
// unprocessed arguments with the error recorded on them. Results are in
// input order.
func (e *StructureExtractor) ExtractBatch(ctx context.Context, comments []model.Comment) []model.Argument {
	if len(comments) == 0 {
		return []model.Argument{}
	}

	pool := worker.NewPool(ctx, e.cfg.Workers)
	pool.Start()

	for i, c := range comments {
		pool.Submit(&extractJob{index: i, comment: c, extractor: e})
	}

	args := make([]model.Argument, len(comments))
	for _, res := range pool.Wait() {
		r := res.(*extractResult)
		if r.err != nil {
			args[r.index] = errorArgument(comments[r.index], r.err)
			continue
		}
		args[r.index] = *r.argument
	}

	// Jobs dropped by cancellation leave zero-value slots; mark them so
	// callers can tell them from processed arguments.
	for i := range args {
		if args[i].ID == "" {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			args[i] = errorArgument(comments[i], err)
		}
	}

	return args
}

// errorArgument builds the unprocessed marker for a failed batch item
func errorArgument(c model.Comment, err error) model.Argument {
	return model.Argument{
		ID:          uuid.NewString(),
		BillID:      c.BillID,
		AuthorID:    c.AuthorID,
		CommentID:   c.ID,
		CommentText: c.Text,
		Claims:      []model.Claim{},
		Evidence:    []model.Evidence{},
		Position:    model.PositionNeutral,
		CreatedAt:   time.Now().UTC(),
		Error:       err.Error(),
	}
}
