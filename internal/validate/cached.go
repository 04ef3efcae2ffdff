package validate

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chanuka/mjadala/internal/cache"
	"github.com/chanuka/mjadala/internal/logging"
)

// CachedFactCheck wraps a fact-check lookup with a cache keyed on the
// claim text. Only successful non-nil hints are stored, so a lookup
// that was unavailable stays retryable on the next run.
func CachedFactCheck(fn FactCheckFunc, c cache.Cache, ttl time.Duration) FactCheckFunc {
	if fn == nil || c == nil {
		return fn
	}

	return func(ctx context.Context, text string) (*float64, error) {
		key := cache.CacheKey("factcheck:" + text)

		if data, found := c.Get(key); found {
			var hint float64
			if err := json.Unmarshal(data, &hint); err == nil {
				return &hint, nil
			}
			// Corrupt entry: drop it and look up again
			_ = c.Delete(key)
		}

		hint, err := fn(ctx, text)
		if err != nil || hint == nil {
			return hint, err
		}

		if data, err := json.Marshal(*hint); err == nil {
			if err := c.Set(key, data, ttl); err != nil {
				logging.Debug("Fact-check cache write failed", "error", err)
			}
		}

		return hint, nil
	}
}
