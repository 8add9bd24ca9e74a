// Package marketdata wraps the upstream price API behind an in-memory TTL
// cache and a process-wide rate limiter. The cache exists to suppress
// redundant upstream calls; the limiter spaces out the calls that do go out.
package marketdata

import (
	"sync"
	"time"
)

type cacheEntry struct {
	value    any
	storedAt time.Time
}

// Cache is a key/value store with a single TTL policy. Entries are never
// evicted: an expired entry stays retrievable as a stale fallback, and the
// key space is bounded by the set of distinct queries. Safe for concurrent
// use.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry

	now func() time.Time // overridable for tests
}

// NewCache creates a cache whose entries are considered fresh for ttl.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the stored value and whether it is still within TTL.
// The second return is false for both stale and absent entries; the third
// distinguishes "stale but present" from "never stored".
func (c *Cache) Get(key string) (value any, fresh bool, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, false
	}
	return e.value, c.now().Sub(e.storedAt) < c.ttl, true
}

// Set unconditionally stores or overwrites a value, resetting its age.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, storedAt: c.now()}
}

// Len returns the number of stored entries, fresh or stale.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
