package embed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chanuka/mjadala/internal/cache"
	"github.com/chanuka/mjadala/internal/logging"
)

// CachedEmbedder wraps another embedder with a cache keyed on model name
// and input text. Identical text always yields the stored vector, which
// saves remote calls and keeps rerun vectors stable.
type CachedEmbedder struct {
	inner Embedder
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedEmbedder wraps inner with the given cache
func NewCachedEmbedder(inner Embedder, c cache.Cache, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: c, ttl: ttl}
}

// Name returns the inner model name
func (e *CachedEmbedder) Name() string {
	return e.inner.Name()
}

// Available reports the inner embedder's readiness
func (e *CachedEmbedder) Available() bool {
	return e.inner.Available()
}

// Embed returns the cached vector for text, or computes and stores it
func (e *CachedEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	key := e.key(text)

	if vec, ok := e.lookup(key); ok {
		return vec, nil
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.store(key, vec)

	return vec, nil
}

// EmbedBatch serves what it can from the cache and fetches only the
// misses from the inner embedder
func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	vectors := make([]Vector, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		if vec, ok := e.lookup(e.key(text)); ok {
			vectors[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return vectors, nil
	}

	fetched, err := e.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, idx := range missIdx {
		vectors[idx] = fetched[j]
		e.store(e.key(texts[idx]), fetched[j])
	}

	return vectors, nil
}

func (e *CachedEmbedder) key(text string) string {
	return cache.CacheKey(e.inner.Name() + ":" + text)
}

func (e *CachedEmbedder) lookup(key string) (Vector, bool) {
	data, found := e.cache.Get(key)
	if !found {
		return nil, false
	}

	var vec Vector
	if err := json.Unmarshal(data, &vec); err != nil || len(vec) == 0 {
		// Corrupt entry: drop it and recompute
		_ = e.cache.Delete(key)
		return nil, false
	}

	return vec, true
}

func (e *CachedEmbedder) store(key string, vec Vector) {
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := e.cache.Set(key, data, e.ttl); err != nil {
		logging.Debug("Embedding cache write failed", "error", err)
	}
}
