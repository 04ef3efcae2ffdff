package embed

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chanuka/mjadala/internal/cache"
	"github.com/chanuka/mjadala/internal/model"
)

// mapCache implements cache.Cache
type mapCache struct {
	data    map[string][]byte
	deletes int
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (c *mapCache) Get(key string) ([]byte, bool) {
	v, ok := c.data[key]
	return v, ok
}

func (c *mapCache) Set(key string, value []byte, ttl time.Duration) error {
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(key string) error {
	c.deletes++
	delete(c.data, key)
	return nil
}

func (c *mapCache) Clear() error {
	c.data = make(map[string][]byte)
	return nil
}

// countingEmbedder wraps an Embedder and records how often it is hit
type countingEmbedder struct {
	inner      Embedder
	embedCalls int
	batchCalls int
	lastBatch  []string
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	e.embedCalls++
	return e.inner.Embed(ctx, text)
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	e.batchCalls++
	e.lastBatch = append([]string(nil), texts...)
	return e.inner.EmbedBatch(ctx, texts)
}

func (e *countingEmbedder) Name() string {
	return e.inner.Name()
}

func (e *countingEmbedder) Available() bool {
	return e.inner.Available()
}

func TestHashingEmbedder_Deterministic(t *testing.T) {
	e := NewHashingEmbedder(256)
	text := "The boda boda levy will push riders out of Gikomba market."

	v1, err := e.Embed(context.Background(), text)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	v2, err := e.Embed(context.Background(), text)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !vectorsEqual(v1, v2) {
		t.Error("Expected identical vectors for identical text")
	}
}

func TestHashingEmbedder_UnitNorm(t *testing.T) {
	e := NewHashingEmbedder(256)

	vec, err := e.Embed(context.Background(), "Small traders cannot absorb another levy this year.")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}

	if sumSq < 0.999 || sumSq > 1.001 {
		t.Errorf("Expected unit norm, got squared norm %f", sumSq)
	}
}

func TestHashingEmbedder_SimilarTextsScoreHigher(t *testing.T) {
	e := NewHashingEmbedder(256)
	ctx := context.Background()

	a, _ := e.Embed(ctx, "Boda boda operators cannot afford this new levy on motorcycles.")
	b, _ := e.Embed(ctx, "This levy on motorcycles is something boda boda operators cannot afford.")
	c, _ := e.Embed(ctx, "County governments need more funding for rural water projects.")

	simAB := Similarity(a, b)
	simAC := Similarity(a, c)

	if simAB <= simAC {
		t.Errorf("Expected paraphrase similarity %f to exceed unrelated similarity %f", simAB, simAC)
	}
}

func TestHashingEmbedder_PluralFormsCollide(t *testing.T) {
	e := NewHashingEmbedder(256)
	ctx := context.Background()

	v1, _ := e.Embed(ctx, "The matatu business will suffer")
	v2, _ := e.Embed(ctx, "The matatu businesses will suffer")

	if !vectorsEqual(v1, v2) {
		t.Error("Expected singular and plural forms to produce the same vector")
	}
}

func TestHashingEmbedder_StopwordOnlyFallback(t *testing.T) {
	e := NewHashingEmbedder(256)

	vec, err := e.Embed(context.Background(), "It is as it was.")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	nonZero := false
	for _, v := range vec {
		if v != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Error("Expected a non-zero vector for stopword-only text")
	}
}

func TestHashingEmbedder_Defaults(t *testing.T) {
	e := NewHashingEmbedder(0)

	vec, err := e.Embed(context.Background(), "levy")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(vec) != 256 {
		t.Errorf("Expected default 256 dimensions, got %d", len(vec))
	}
	if e.Name() != "hashing-256" {
		t.Errorf("Expected name hashing-256, got %s", e.Name())
	}
	if !e.Available() {
		t.Error("Expected hashing embedder to always be available")
	}
}

func TestHashingEmbedder_BatchCancellation(t *testing.T) {
	e := NewHashingEmbedder(64)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.EmbedBatch(ctx, []string{"one", "two"})
	if err == nil {
		t.Fatal("Expected error from cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestCosineSimilarity_EdgeCases(t *testing.T) {
	tests := []struct {
		name string
		a    Vector
		b    Vector
		want float64
	}{
		{"mismatched lengths", Vector{1, 2}, Vector{1, 2, 3}, 0},
		{"empty vectors", Vector{}, Vector{}, 0},
		{"zero vector", Vector{0, 0}, Vector{1, 1}, 0},
		{"identical", Vector{1, 2, 3}, Vector{1, 2, 3}, 1},
		{"opposite", Vector{1, 2}, Vector{-1, -2}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if got < tt.want-1e-9 || got > tt.want+1e-9 {
				t.Errorf("CosineSimilarity() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestSimilarity_Bounds(t *testing.T) {
	identical := Similarity(Vector{1, 2}, Vector{1, 2})
	if identical < 1-1e-9 || identical > 1+1e-9 {
		t.Errorf("Expected similarity 1.0 for identical vectors, got %f", identical)
	}

	opposite := Similarity(Vector{1, 2}, Vector{-1, -2})
	if opposite < -1e-9 || opposite > 1e-9 {
		t.Errorf("Expected similarity 0.0 for opposite vectors, got %f", opposite)
	}

	orthogonal := Similarity(Vector{1, 0}, Vector{0, 1})
	if orthogonal < 0.5-1e-9 || orthogonal > 0.5+1e-9 {
		t.Errorf("Expected similarity 0.5 for orthogonal vectors, got %f", orthogonal)
	}
}

func TestArgumentText_JoinsClaimsAndEvidence(t *testing.T) {
	arg := &model.Argument{
		Claims: []model.Claim{
			{Text: "The levy harms small traders."},
		},
		Evidence: []model.Evidence{
			{Text: "According to KNBS, trade volumes fell last year."},
		},
		CommentText: "raw comment",
	}

	text := ArgumentText(arg)
	if !strings.Contains(text, "levy harms") {
		t.Errorf("Expected claim text in %q", text)
	}
	if !strings.Contains(text, "KNBS") {
		t.Errorf("Expected evidence text in %q", text)
	}
}

func TestArgumentText_FallsBackToComment(t *testing.T) {
	arg := &model.Argument{CommentText: "Too short to parse."}

	if got := ArgumentText(arg); got != "Too short to parse." {
		t.Errorf("Expected comment text fallback, got %q", got)
	}
}

func TestCachedEmbedder_ServesFromCache(t *testing.T) {
	counting := &countingEmbedder{inner: NewHashingEmbedder(64)}
	cached := NewCachedEmbedder(counting, newMapCache(), time.Minute)
	ctx := context.Background()
	text := "The Finance Bill raises matatu licensing fees."

	v1, err := cached.Embed(ctx, text)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	v2, err := cached.Embed(ctx, text)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if counting.embedCalls != 1 {
		t.Errorf("Expected 1 inner embed call, got %d", counting.embedCalls)
	}
	if !vectorsEqual(v1, v2) {
		t.Error("Expected cached vector to match the computed one")
	}
}

func TestCachedEmbedder_BatchFetchesOnlyMisses(t *testing.T) {
	hashing := NewHashingEmbedder(64)
	counting := &countingEmbedder{inner: hashing}
	cached := NewCachedEmbedder(counting, newMapCache(), time.Minute)
	ctx := context.Background()

	t1 := "Article 28 protects the dignity of every street vendor."
	t2 := "The levy should be phased in over three years."
	t3 := "County assemblies were not consulted on the schedule."

	// Warm one entry
	if _, err := cached.Embed(ctx, t2); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	vectors, err := cached.EmbedBatch(ctx, []string{t1, t2, t3})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if counting.batchCalls != 1 {
		t.Errorf("Expected 1 inner batch call, got %d", counting.batchCalls)
	}
	if len(counting.lastBatch) != 2 || counting.lastBatch[0] != t1 || counting.lastBatch[1] != t3 {
		t.Errorf("Expected inner batch to receive only the misses, got %v", counting.lastBatch)
	}

	for i, text := range []string{t1, t2, t3} {
		want, _ := hashing.Embed(ctx, text)
		if !vectorsEqual(vectors[i], want) {
			t.Errorf("Vector %d does not match direct embedding", i)
		}
	}
}

func TestCachedEmbedder_CorruptEntryRecomputed(t *testing.T) {
	hashing := NewHashingEmbedder(64)
	counting := &countingEmbedder{inner: hashing}
	mc := newMapCache()
	cached := NewCachedEmbedder(counting, mc, time.Minute)
	ctx := context.Background()
	text := "Clause 12 doubles the market stall fees."

	key := cache.CacheKey(hashing.Name() + ":" + text)
	mc.data[key] = []byte("not json")

	vec, err := cached.Embed(ctx, text)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if mc.deletes != 1 {
		t.Errorf("Expected corrupt entry to be deleted once, got %d deletes", mc.deletes)
	}
	if counting.embedCalls != 1 {
		t.Errorf("Expected recompute after corrupt entry, got %d calls", counting.embedCalls)
	}

	want, _ := hashing.Embed(ctx, text)
	if !vectorsEqual(vec, want) {
		t.Error("Expected recomputed vector to match direct embedding")
	}
}

func TestOpenAIEmbedder_UnavailableWithoutKey(t *testing.T) {
	e := NewOpenAIEmbedder(model.EmbeddingConfig{}, "")

	if e.Available() {
		t.Error("Expected embedder without API key to be unavailable")
	}

	_, err := e.Embed(context.Background(), "some text")
	if err == nil {
		t.Fatal("Expected error from unavailable embedder")
	}
	if !errors.Is(err, model.ErrExternalServiceUnavailable) {
		t.Errorf("Expected ErrExternalServiceUnavailable, got %v", err)
	}
	if !model.Recoverable(err) {
		t.Error("Expected unavailable-service error to be recoverable")
	}
}

func TestDedupIndex_GroupsNearIdentical(t *testing.T) {
	e := NewHashingEmbedder(256)
	ctx := context.Background()

	v1, _ := e.Embed(ctx, "The levy on boda boda operators is unfair and should be scrapped.")
	v2, _ := e.Embed(ctx, "That levy on the boda boda operators is unfair, and it should be scrapped!")
	v3, _ := e.Embed(ctx, "County water projects deserve a bigger allocation in the budget.")

	d := NewDedupIndex(0.9, 1)

	if isDup, _ := d.Add("e1", v1); isDup {
		t.Error("Expected first vector to be unique")
	}
	isDup, primary := d.Add("e2", v2)
	if !isDup {
		t.Fatal("Expected near-identical vector to be a duplicate")
	}
	if primary != "e1" {
		t.Errorf("Expected primary e1, got %s", primary)
	}
	if isDup, _ := d.Add("e3", v3); isDup {
		t.Error("Expected unrelated vector to be unique")
	}

	if !d.IsPrimary("e1") {
		t.Error("Expected e1 to be primary")
	}
	if d.IsPrimary("e2") {
		t.Error("Expected e2 to be a duplicate")
	}
	if !d.IsPrimary("e3") {
		t.Error("Expected e3 to be primary")
	}

	if size := d.GroupSize("e1"); size != 2 {
		t.Errorf("Expected group size 2 for e1, got %d", size)
	}
	if size := d.GroupSize("e3"); size != 1 {
		t.Errorf("Expected group size 1 for e3, got %d", size)
	}

	dups := d.Duplicates("e1")
	if len(dups) != 1 || dups[0] != "e2" {
		t.Errorf("Expected duplicates [e2], got %v", dups)
	}

	indexed, groups, duplicates := d.Stats()
	if indexed != 3 || groups != 1 || duplicates != 1 {
		t.Errorf("Expected stats (3,1,1), got (%d,%d,%d)", indexed, groups, duplicates)
	}
}

func TestDedupIndex_EmptyVectorIgnored(t *testing.T) {
	d := NewDedupIndex(0.9, 1)

	if isDup, _ := d.Add("x", nil); isDup {
		t.Error("Expected empty vector to be treated as unique")
	}

	indexed, _, _ := d.Stats()
	if indexed != 0 {
		t.Errorf("Expected nothing indexed, got %d", indexed)
	}
}

func TestDedupIndex_ReAddKeepsMembership(t *testing.T) {
	e := NewHashingEmbedder(256)
	ctx := context.Background()

	v1, _ := e.Embed(ctx, "Parliament should reject the stall fee increase.")
	v2, _ := e.Embed(ctx, "Parliament should reject the stall fee increase!")

	d := NewDedupIndex(0.9, 1)
	d.Add("a", v1)
	d.Add("b", v2)

	if isDup, primary := d.Add("b", v2); !isDup || primary != "a" {
		t.Errorf("Expected re-added duplicate to report (true, a), got (%v, %s)", isDup, primary)
	}
	if isDup, _ := d.Add("a", v1); isDup {
		t.Error("Expected re-added primary to stay unique")
	}

	indexed, _, _ := d.Stats()
	if indexed != 2 {
		t.Errorf("Expected 2 indexed after re-adds, got %d", indexed)
	}
}

func vectorsEqual(a, b Vector) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
