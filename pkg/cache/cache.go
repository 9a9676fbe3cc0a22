// Package cache provides a TTL cache for read-heavy catalog data.
package cache

import (
	"context"
	"sync"
	"time"
)

// Clock supplies the current time. Injecting it keeps expiry behavior
// testable without sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns the current time
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Cache stores byte values under string keys with per-entry TTLs
type Cache interface {
	// Get returns the value for key; the bool reports whether a live
	// entry was found
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key for ttl
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate removes the entry for key
	Invalidate(ctx context.Context, key string) error
}

// memoryEntry is one stored value with its expiry deadline
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache keeps entries in a map. Expired entries are dropped lazily
// on read.
type MemoryCache struct {
	entries map[string]memoryEntry
	clock   Clock
	mu      sync.RWMutex
}

// NewMemoryCache creates an in-memory cache using the given clock
func NewMemoryCache(clock Clock) *MemoryCache {
	if clock == nil {
		clock = SystemClock{}
	}
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		clock:   clock,
	}
}

// Get returns the value for key when a live entry exists
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !c.clock.Now().Before(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a Set may have raced the expiry
		if current, ok := c.entries[key]; ok && !c.clock.Now().Before(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	buf := make([]byte, len(entry.value))
	copy(buf, entry.value)
	return buf, true, nil
}

// Set stores value under key for ttl
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	buf := make([]byte, len(value))
	copy(buf, value)

	c.mu.Lock()
	c.entries[key] = memoryEntry{value: buf, expiresAt: c.clock.Now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Invalidate removes the entry for key
func (c *MemoryCache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}
