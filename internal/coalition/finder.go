package coalition

import (
	"sort"
	"strings"
	"unicode"

	"github.com/chanuka/mjadala/internal/embed"
	"github.com/chanuka/mjadala/internal/logging"
	"github.com/chanuka/mjadala/internal/model"
)

// Finder detects relationships between cluster pairs: complementary
// concerns across positions, shared ground within a position, and
// opposed camps arguing over the same statutory text. Pairwise scan is
// O(k²) on clusters, which stays cheap because k is capped by the
// clustering config.
type Finder struct {
	cfg model.CoalitionConfig
}

// NewFinder creates a finder with sensible defaults
func NewFinder(cfg model.CoalitionConfig) *Finder {
	if cfg.MinStrength <= 0 {
		cfg.MinStrength = 0.55
	}
	if cfg.SharedEvidence <= 0 {
		cfg.SharedEvidence = 0.45
	}
	if cfg.LexicalWeight <= 0 && cfg.SemanticWeight <= 0 {
		cfg.LexicalWeight = 0.4
		cfg.SemanticWeight = 0.6
	}
	return &Finder{cfg: cfg}
}

// Find returns the coalitions among the given clusters, strongest
// first. Output order is deterministic for identical input.
func (f *Finder) Find(clusters []*model.Cluster) []model.Coalition {
	out := []model.Coalition{}
	if len(clusters) < 2 {
		return out
	}

	tokens := make([]map[string]bool, len(clusters))
	refs := make([]map[string]bool, len(clusters))
	for i, c := range clusters {
		tokens[i] = claimTokens(c.RepresentativeClaims)
		refs[i] = legalRefs(c.RepresentativeClaims)
	}

	for i := 0; i < len(clusters); i++ {
		for j := i + 1; j < len(clusters); j++ {
			a, b := clusters[i], clusters[j]
			strength := f.pairStrength(tokens[i], tokens[j], a.CentroidVector, b.CentroidVector)

			var rel model.RelationType
			switch {
			case opposed(a.Position, b.Position) && sharedAny(refs[i], refs[j]):
				// A shared citation between opposed camps is itself
				// the relationship, whatever the pair strength
				rel = model.RelationOpposingButOverlapped
			case a.Position != b.Position && strength >= f.cfg.MinStrength:
				rel = model.RelationComplementaryConcern
			case a.Position == b.Position && strength >= f.cfg.SharedEvidence:
				rel = model.RelationSharedEvidence
			default:
				continue
			}

			out = append(out, model.Coalition{
				ClusterIDs:       []string{a.ID, b.ID},
				RelationshipType: rel,
				Strength:         strength,
			})
		}
	}

	sort.SliceStable(out, func(x, y int) bool {
		if out[x].Strength != out[y].Strength {
			return out[x].Strength > out[y].Strength
		}
		return strings.Join(out[x].ClusterIDs, ",") < strings.Join(out[y].ClusterIDs, ",")
	})

	logging.Debug("Coalition scan complete",
		"clusters", len(clusters),
		"coalitions", len(out))

	return out
}

// pairStrength blends claim-token overlap with centroid similarity
func (f *Finder) pairStrength(aTokens, bTokens map[string]bool, aCentroid, bCentroid []float32) float64 {
	strength := f.cfg.LexicalWeight*jaccard(aTokens, bTokens) +
		f.cfg.SemanticWeight*embed.Similarity(embed.Vector(aCentroid), embed.Vector(bCentroid))
	if strength > 1 {
		strength = 1
	}
	return strength
}

func opposed(a, b model.Position) bool {
	return (a == model.PositionSupport && b == model.PositionOppose) ||
		(a == model.PositionOppose && b == model.PositionSupport)
}

// skipTokens are function words excluded from claim overlap
var skipTokens = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "are": true, "was": true, "will": true, "should": true,
	"not": true, "but": true, "its": true, "from": true, "have": true,
}

// claimTokens collects the content tokens across a cluster's
// representative claims
func claimTokens(claims []string) map[string]bool {
	set := make(map[string]bool)
	for _, claim := range claims {
		for _, tok := range tokenize(claim) {
			if len(tok) < 3 || skipTokens[tok] {
				continue
			}
			set[tok] = true
		}
	}
	return set
}

// refKeywords introduce a statutory reference when followed by a number
var refKeywords = map[string]bool{
	"section": true, "article": true, "clause": true,
	"schedule": true, "regulation": true, "cap": true,
}

// legalRefs extracts normalized statutory references like "article 28"
func legalRefs(claims []string) map[string]bool {
	refs := make(map[string]bool)
	for _, claim := range claims {
		tokens := tokenize(claim)
		for i := 0; i+1 < len(tokens); i++ {
			if refKeywords[tokens[i]] && leadsWithDigit(tokens[i+1]) {
				refs[tokens[i]+" "+tokens[i+1]] = true
			}
		}
	}
	return refs
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func leadsWithDigit(tok string) bool {
	return tok != "" && unicode.IsDigit(rune(tok[0]))
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if b[tok] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func sharedAny(a, b map[string]bool) bool {
	for ref := range a {
		if b[ref] {
			return true
		}
	}
	return false
}
