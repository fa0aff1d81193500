package cache

import (
	"time"
)

// CacheService is a TTL key/value cache. The pipeline uses it to remember
// brands that actively rejected automated traffic, so the next cycles can
// back off without a network call.
type CacheService interface {
	// Get retrieves a value; a non-nil error means the key is absent or expired.
	Get(key string) ([]byte, error)

	// Set stores a value with an expiration time.
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value.
	Delete(key string) error
}

// BlockKey builds the cache key marking a brand as blocked.
func BlockKey(brandKey string) string {
	return "block:" + brandKey
}
