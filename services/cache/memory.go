package cache

import (
	"errors"
	"sync"
	"time"
)

// ErrCacheMiss is returned by MemoryService.Get for absent or expired keys.
var ErrCacheMiss = errors.New("cache: miss")

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryService is an in-process CacheService for development and tests,
// used when no memcache address is configured.
type MemoryService struct {
	mu    sync.Mutex
	items map[string]memoryItem
}

// NewMemoryService creates an empty in-memory cache.
func NewMemoryService() *MemoryService {
	return &MemoryService{items: make(map[string]memoryItem)}
}

// Get retrieves a value, honoring expiration.
func (m *MemoryService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		delete(m.items, key)
		return nil, ErrCacheMiss
	}
	return item.value, nil
}

// Set stores a value; a zero expiration means no expiry.
func (m *MemoryService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := memoryItem{value: value}
	if expiration > 0 {
		item.expiresAt = time.Now().Add(expiration)
	}
	m.items[key] = item
	return nil
}

// Delete removes a value.
func (m *MemoryService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}
