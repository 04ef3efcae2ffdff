package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey generates a stable key from arbitrary content, such as an
// embedding model name plus input text. The version segment lets a
// format change invalidate old entries by changing the namespace.
func CacheKey(content string) string {
	hash := sha256.Sum256([]byte(content))
	return "mjadala:v1:" + hex.EncodeToString(hash[:])
}
