package validate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/chanuka/mjadala/internal/logging"
	"github.com/chanuka/mjadala/internal/model"
)

// FactCheckFunc looks up an external credibility hint in [0,1] for an
// evidence text. A nil hint means no verdict is available; absence of a
// verdict is never treated as a negative signal.
type FactCheckFunc func(ctx context.Context, text string) (*float64, error)

// Validator scores Evidence credibility from deterministic text
// features, optionally blended with an external fact-check hint. The
// same evidence always produces the same score, so re-validation is
// safe; each pass appends a snapshot to ScoreHistory and the first
// score becomes the immutable CredibilityScore.
type Validator struct {
	cfg       model.ValidationConfig
	factCheck FactCheckFunc
	prober    *CitationProber
	authority *AuthorityClassifier
}

// NewValidator creates a validator. factCheck and prober may be nil;
// scoring then runs on text features alone.
func NewValidator(cfg model.ValidationConfig, factCheck FactCheckFunc, prober *CitationProber) *Validator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Validator{
		cfg:       cfg,
		factCheck: factCheck,
		prober:    prober,
		authority: NewAuthorityClassifier(cfg.PrimaryDomains, cfg.SecondaryDomains),
	}
}

// Validate scores one Evidence item and returns a copy carrying the
// result. Never fails: when an external collaborator is unavailable the
// snapshot is marked degraded and the remaining signals still count.
func (v *Validator) Validate(ctx context.Context, ev model.Evidence) model.Evidence {
	score, snapshot := v.score(ctx, ev)

	out := ev
	out.ScoreHistory = append(append([]model.CredibilitySnapshot(nil), ev.ScoreHistory...), snapshot)
	if !out.Scored() {
		out.CredibilityScore = &score
	}
	if out.Authority == model.TierUnknown && out.SourceURL != "" {
		out.Authority = v.authority.Classify(out.SourceURL)
	}
	return out
}

// ValidateBatch scores evidence items concurrently, preserving order.
// Items skipped due to cancellation are returned unscored.
func (v *Validator) ValidateBatch(ctx context.Context, items []model.Evidence) ([]model.Evidence, error) {
	if len(items) == 0 {
		return []model.Evidence{}, nil
	}

	results := make([]model.Evidence, len(items))
	sem := make(chan struct{}, v.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, ev := range items {
		wg.Add(1)
		go func(i int, ev model.Evidence) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = ev
				return
			}
			results[i] = v.Validate(ctx, ev)
		}(i, ev)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("validate: batch interrupted: %w", err)
	}

	logging.Debug("Evidence batch validated", "count", len(items))
	return results, nil
}

// score computes the credibility score and its snapshot
func (v *Validator) score(ctx context.Context, ev model.Evidence) (float64, model.CredibilitySnapshot) {
	score := typePrior(ev.SourceType)
	signals := []string{fmt.Sprintf("prior:%s", ev.SourceType)}
	degraded := false
	usedFactCheck := false

	if hasNumber(ev.Text) {
		score += 0.05
		signals = append(signals, "numbers")
	}
	if hasDate(ev.Text) {
		score += 0.05
		signals = append(signals, "dates")
	}
	if hasNamedEntity(ev.Text) {
		score += 0.05
		signals = append(signals, "named_entities")
	}

	if ev.SourceURL != "" {
		switch v.authority.Classify(ev.SourceURL) {
		case model.TierPrimary:
			score += 0.10
			signals = append(signals, "authority:primary")
		case model.TierSecondary:
			score += 0.05
			signals = append(signals, "authority:secondary")
		}

		if v.cfg.ProbeCitations && v.prober != nil {
			check := v.prober.Probe(ctx, ev.SourceURL)
			switch {
			case check.IsDead:
				score -= 0.2
				signals = append(signals, "dead_link")
			case check.IsAccessible:
				score += 0.05
				signals = append(signals, "link_verified")
			case check.Error != "":
				degraded = true
				signals = append(signals, "probe_unavailable")
			}
		}
	}

	if v.factCheck != nil {
		hint, err := v.lookupHint(ctx, ev.Text)
		if err != nil || hint == nil {
			degraded = true
			signals = append(signals, "fact_check_unavailable")
		} else {
			score = 0.7*score + 0.3*clamp(*hint)
			usedFactCheck = true
			signals = append(signals, "fact_check")
		}
	}

	score = clamp(score)

	return score, model.CredibilitySnapshot{
		Score:     score,
		ScoredAt:  time.Now().UTC(),
		Signals:   signals,
		FactCheck: usedFactCheck,
		Degraded:  degraded,
	}
}

// lookupHint queries the fact checker under the configured timeout
func (v *Validator) lookupHint(ctx context.Context, text string) (*float64, error) {
	lctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()
	return v.factCheck(lctx, text)
}

// typePrior is the base credibility for each evidence type
func typePrior(t model.SourceType) float64 {
	switch t {
	case model.SourceCitation:
		return 0.6
	case model.SourceStatistic:
		return 0.5
	case model.SourceExperience:
		return 0.35
	case model.SourceAnecdote:
		return 0.2
	default:
		return 0.2
	}
}

// clamp bounds a score to [0, 1]
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func hasNumber(text string) bool {
	for _, r := range text {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

var monthTokens = map[string]bool{
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
}

// hasDate looks for a plausible year or a month name adjacent to a
// number. A bare month token is not enough ("it may pass" is not a date).
func hasDate(text string) bool {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, tok := range tokens {
		if isYearToken(tok) {
			return true
		}
		if monthTokens[tok] {
			if i > 0 && allDigits(tokens[i-1]) {
				return true
			}
			if i+1 < len(tokens) && allDigits(tokens[i+1]) {
				return true
			}
		}
	}
	return false
}

// institutionTokens are single-word institution names matched per token
var institutionTokens = map[string]bool{
	"knbs": true, "kra": true, "parliament": true,
	"treasury": true, "senate": true, "imf": true,
}

// institutionPhrases are multi-word institution names
var institutionPhrases = []string{"county assembly", "world bank", "central bank"}

// hasNamedEntity looks for a known institution or a pair of adjacent
// capitalized words past the sentence start.
func hasNamedEntity(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range institutionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, tok := range tokens {
		if institutionTokens[tok] {
			return true
		}
	}

	words := strings.Fields(text)
	for i := 1; i < len(words)-1; i++ {
		if isCapitalized(words[i]) && isCapitalized(words[i+1]) {
			return true
		}
	}
	return false
}

func isCapitalized(word string) bool {
	r := []rune(word)
	return len(r) > 1 && unicode.IsUpper(r[0]) && unicode.IsLower(r[1])
}

func isYearToken(tok string) bool {
	return len(tok) == 4 && allDigits(tok) &&
		(strings.HasPrefix(tok, "19") || strings.HasPrefix(tok, "20"))
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
