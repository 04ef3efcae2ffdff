package embed

import (
	"context"
	"math"
	"strings"

	"github.com/chanuka/mjadala/internal/model"
)

// Vector is a dense embedding vector
type Vector []float32

// Embedder generates embedding vectors from argument text
type Embedder interface {
	// Embed generates a vector for a single text
	Embed(ctx context.Context, text string) (Vector, error)

	// EmbedBatch generates vectors for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)

	// Name returns the model name
	Name() string

	// Available checks if the embedder is ready
	Available() bool
}

// CosineSimilarity computes raw cosine similarity between two vectors
// (1.0 = identical, 0.0 = orthogonal, -1.0 = opposite)
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Similarity rescales cosine similarity to [0,1], the range every
// clustering and ranking threshold is defined over
func Similarity(a, b Vector) float64 {
	return (1 + CosineSimilarity(a, b)) / 2
}

// Normalize scales a vector to unit length in place. Zero vectors are
// left unchanged.
func Normalize(vec Vector) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return
	}

	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
}

// ArgumentText builds the text an argument embeds from: its claims plus
// its evidence spans. Empty-claim arguments fall back to the raw comment
// text, so clustering never receives an undefined input.
func ArgumentText(arg *model.Argument) string {
	parts := make([]string, 0, len(arg.Claims)+len(arg.Evidence))
	for _, c := range arg.Claims {
		parts = append(parts, c.Text)
	}
	for _, ev := range arg.Evidence {
		parts = append(parts, ev.Text)
	}

	if len(parts) == 0 {
		return arg.CommentText
	}
	return strings.Join(parts, " ")
}
