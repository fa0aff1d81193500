package scraper

import "sync"

// FailedBrands is the cycle-scoped set of brands whose fetch already failed,
// so later attempts in the same cycle can be skipped without a network call.
// A fresh set is created at cycle start; concurrent inserts of the same key
// are benign.
type FailedBrands struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewFailedBrands creates an empty set.
func NewFailedBrands() *FailedBrands {
	return &FailedBrands{keys: make(map[string]struct{})}
}

// Add records a brand as failed for the rest of the cycle.
func (f *FailedBrands) Add(key string) {
	f.mu.Lock()
	f.keys[key] = struct{}{}
	f.mu.Unlock()
}

// Contains reports whether a brand already failed this cycle.
func (f *FailedBrands) Contains(key string) bool {
	f.mu.Lock()
	_, ok := f.keys[key]
	f.mu.Unlock()
	return ok
}

// Len returns the number of failed brands.
func (f *FailedBrands) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keys)
}
