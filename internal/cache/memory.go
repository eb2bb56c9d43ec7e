package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process Cache with real TTL expiry, used in tests
// and redis-less local development.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache constructs an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the value if present and not expired.
func (c *MemoryCache) Get(ctx context.Context, key string) []byte {
	if ctx.Err() != nil {
		return nil
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expiresAt) {
		return nil
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out
}

// Set stores a copy of the value with the given TTL.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ctx.Err() != nil {
		return
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	c.mu.Lock()
	c.entries[key] = memoryEntry{value: stored, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Delete removes the keys.
func (c *MemoryCache) Delete(ctx context.Context, keys ...string) {
	if ctx.Err() != nil {
		return
	}
	c.mu.Lock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	c.mu.Unlock()
}

// SetClock overrides the time source. Test hook for TTL expiry.
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

var _ Cache = (*MemoryCache)(nil)
