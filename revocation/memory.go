package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process [Cache] for tests and single-binary demos.
// It must not be used in front of, or instead of, a shared backend when
// more than one instance serves traffic.
type MemoryCache struct {
	mu          sync.Mutex
	blacklisted map[string]time.Time
	grace       map[string]time.Time
	now         func() time.Time
	nextPrune   time.Time
}

// memoryPruneInterval bounds how often a write walks both maps to drop
// expired markers.
const memoryPruneInterval = time.Minute

// NewMemoryCache returns an empty [MemoryCache]. now may be nil.
func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{
		blacklisted: make(map[string]time.Time),
		grace:       make(map[string]time.Time),
		now:         now,
	}
}

// Blacklist implements [Cache].
func (c *MemoryCache) Blacklist(_ context.Context, tokenHash string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.pruneLocked(now)
	c.blacklisted[tokenHash] = now.Add(ttl)
	delete(c.grace, tokenHash)
	return nil
}

// BlacklistWithGrace implements [Cache].
func (c *MemoryCache) BlacklistWithGrace(_ context.Context, tokenHash string, ttl, grace time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	grace = clampGrace(ttl, grace)

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.pruneLocked(now)
	c.blacklisted[tokenHash] = now.Add(ttl)
	if grace > 0 {
		c.grace[tokenHash] = now.Add(grace)
	}
	return nil
}

// IsBlacklisted implements [Cache].
func (c *MemoryCache) IsBlacklisted(_ context.Context, tokenHash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()

	if until, ok := c.grace[tokenHash]; ok {
		if now.Before(until) {
			return false
		}
		delete(c.grace, tokenHash)
	}

	until, ok := c.blacklisted[tokenHash]
	if !ok {
		return false
	}
	if !now.Before(until) {
		delete(c.blacklisted, tokenHash)
		return false
	}
	return true
}

// pruneLocked drops expired markers of hashes that are never read again.
func (c *MemoryCache) pruneLocked(now time.Time) {
	if now.Before(c.nextPrune) {
		return
	}
	c.nextPrune = now.Add(memoryPruneInterval)
	for hash, until := range c.blacklisted {
		if !now.Before(until) {
			delete(c.blacklisted, hash)
		}
	}
	for hash, until := range c.grace {
		if !now.Before(until) {
			delete(c.grace, hash)
		}
	}
}

// Len reports the number of live durable markers.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for _, until := range c.blacklisted {
		if now.Before(until) {
			n++
		}
	}
	return n
}
