// Package cache provides an in-memory TTL cache keyed by query signature.
// It sits in front of the stores; staleness is bounded by each entry's TTL,
// writes through other paths do not invalidate.
package cache

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type entry struct {
	data       any
	insertedAt time.Time
	ttl        time.Duration
}

// Cache is a process-wide TTL cache. One instance is constructed at startup
// and passed to consumers; there is no package-level state.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	log     *zap.Logger
	now     func() time.Time
}

// New creates an empty cache.
func New(log *zap.Logger) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		log:     log,
		now:     time.Now,
	}
}

// Set stores data under key with the given TTL, replacing any previous entry.
func (c *Cache) Set(key string, data any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{data: data, insertedAt: c.now(), ttl: ttl}
}

// Get returns the value stored under key. Entries past insertedAt+ttl are
// evicted and reported as a miss.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.now().Sub(e.insertedAt) > e.ttl {
		c.mu.Lock()
		// Re-check under the write lock; a Set may have raced the eviction.
		if cur, ok := c.entries[key]; ok && cur.insertedAt.Equal(e.insertedAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.data, true
}

// InvalidateByPattern removes every key containing the given substring and
// returns the number of entries removed. Used to drop all entries belonging
// to one user after a mutating write.
func (c *Cache) InvalidateByPattern(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if strings.Contains(key, pattern) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.log.Debug("cache invalidated", zap.String("pattern", pattern), zap.Int("removed", removed))
	}
	return removed
}

// Delete removes a single entry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of live entries, including any not yet evicted.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Fetch is the read-through helper: a cache hit short-circuits, a miss calls
// loader and populates the cache only when the load succeeds.
func Fetch[T any](c *Cache, key string, ttl time.Duration, loader func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
		// A key collision across types; drop just this entry and reload.
		c.Delete(key)
	}

	v, err := loader()
	if err != nil {
		return v, err
	}
	c.Set(key, v, ttl)
	return v, nil
}
