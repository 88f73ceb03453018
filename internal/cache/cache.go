package cache

import (
	"sync"
	"time"
)

type entry struct {
	block     string
	expiresAt time.Time
}

// BlockCache holds assembled company-context blocks per user so repeated
// triggers within the TTL skip the context queries.
type BlockCache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
}

// New creates a block cache with the given TTL.
func New(ttl time.Duration) *BlockCache {
	return &BlockCache{
		entries: make(map[string]entry),
		ttl:     ttl,
	}
}

// Get returns the cached block for a key. Expired entries are evicted on
// access.
func (c *BlockCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return "", false
	}
	return e.block, true
}

// Set stores a block under a key for the cache TTL.
func (c *BlockCache) Set(key, block string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{
		block:     block,
		expiresAt: time.Now().Add(c.ttl),
	}
}
