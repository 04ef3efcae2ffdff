package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// stopwords carry no viewpoint signal and would otherwise dominate the
// overlap between every pair of comments on the same bill
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "this": true, "that": true,
	"these": true, "those": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "will": true, "would": true,
	"to": true, "of": true, "in": true, "on": true, "for": true,
	"and": true, "or": true, "but": true, "by": true, "it": true,
	"its": true, "with": true, "as": true, "at": true, "we": true,
	"i": true, "our": true, "they": true, "their": true, "my": true,
	"not": true, "no": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "from": true, "there": true, "here": true,
}

// HashingEmbedder is the default local embedder: a deterministic
// feature-hashing projection of token and bigram counts onto a fixed
// number of dimensions, L2-normalized. It needs no network and always
// produces the same vector for the same text.
type HashingEmbedder struct {
	dims int
}

// NewHashingEmbedder creates a hashing embedder with the given width
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashingEmbedder{dims: dims}
}

// Name returns the model name
func (e *HashingEmbedder) Name() string {
	return fmt.Sprintf("hashing-%d", e.dims)
}

// Available always reports true: hashing needs nothing external
func (e *HashingEmbedder) Available() bool {
	return true
}

// Embed generates a vector for a single text
func (e *HashingEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	vec := make(Vector, e.dims)

	tokens := contentTokens(text)
	if len(tokens) == 0 {
		// All stopwords or bare punctuation: hash the raw tokens instead
		// so degenerate inputs still get a stable non-zero vector.
		tokens = rawTokens(text)
	}

	for _, tok := range tokens {
		e.addFeature(vec, tok)
	}
	for i := 0; i+1 < len(tokens); i++ {
		e.addFeature(vec, tokens[i]+"_"+tokens[i+1])
	}

	Normalize(vec)
	return vec, nil
}

// EmbedBatch generates vectors for multiple texts, checking for
// cancellation between items
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	vectors := make([]Vector, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// addFeature hashes one feature into the vector with a hash-derived sign
func (e *HashingEmbedder) addFeature(vec Vector, feature string) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % uint64(e.dims))
	if sum&(1<<63) != 0 {
		vec[idx] -= 1
	} else {
		vec[idx] += 1
	}
}

// contentTokens lowercases, trims punctuation, drops stopwords, and
// crudely stems plurals so "businesses" and "business" collide
func contentTokens(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))

	for _, f := range fields {
		tok := strings.Trim(f, ".,;:!?\"'()[]{}")
		if tok == "" || stopwords[tok] {
			continue
		}
		tokens = append(tokens, stem(tok))
	}

	return tokens
}

// rawTokens is the no-filter fallback tokenizer
func rawTokens(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if tok := strings.Trim(f, ".,;:!?\"'()[]{}"); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// stem strips common plural suffixes. Deliberately crude: it only needs
// to make close word forms like "business" and "businesses" collide.
func stem(tok string) string {
	switch {
	case len(tok) > 5 && strings.HasSuffix(tok, "ies"):
		return tok[:len(tok)-3] + "y"
	case len(tok) > 4 && (strings.HasSuffix(tok, "sses") || strings.HasSuffix(tok, "xes") ||
		strings.HasSuffix(tok, "zes") || strings.HasSuffix(tok, "ches") || strings.HasSuffix(tok, "shes")):
		return tok[:len(tok)-2]
	case len(tok) > 3 && strings.HasSuffix(tok, "ss"):
		return tok
	case len(tok) > 3 && strings.HasSuffix(tok, "s"):
		return tok[:len(tok)-1]
	}
	return tok
}
