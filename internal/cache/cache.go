// Package cache provides the time-bounded value cache shared by the engine
// and the source adapters. Entries expire lazily on read; there is no
// background sweep. Caching is best-effort: a race that computes the same
// value twice and overwrites an entry is harmless.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value      string
	insertedAt time.Time
}

// Cache is a string-keyed value cache with a single TTL for all entries.
type Cache struct {
	mu  sync.RWMutex
	ttl time.Duration
	// nowFunc is replaceable in tests to step time.
	nowFunc func() time.Time
	entries map[string]entry
}

// New creates a cache whose entries live for ttl. A non-positive ttl
// disables caching entirely: Put becomes a no-op and Get always misses.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		nowFunc: time.Now,
		entries: make(map[string]entry),
	}
}

// Get returns the cached value for key if one exists and is younger than
// the TTL. A stale entry is evicted on the spot and reported as a miss.
func (c *Cache) Get(key string) (string, bool) {
	if c.ttl <= 0 {
		return "", false
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}

	if c.nowFunc().Sub(e.insertedAt) >= c.ttl {
		c.mu.Lock()
		// Re-check under the write lock; a fresher entry may have raced in.
		if cur, ok := c.entries[key]; ok && c.nowFunc().Sub(cur.insertedAt) >= c.ttl {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return "", false
	}

	return e.value, true
}

// Put stores value under key, stamping it with the current time.
func (c *Cache) Put(key, value string) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry{value: value, insertedAt: c.nowFunc()}
	c.mu.Unlock()
}

// Clear drops every entry unconditionally.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len reports the number of stored entries, stale ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// SetNow replaces the cache's clock. Test hook.
func (c *Cache) SetNow(now func() time.Time) {
	c.mu.Lock()
	c.nowFunc = now
	c.mu.Unlock()
}
