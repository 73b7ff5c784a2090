package cache

import (
	"context"
	"sync"
	"time"

	"github.com/loandesk/loanengine/common/logger"
)

// Cache is the byte-value TTL store behind the calendar view cache
// when CACHE_BACKEND=memory. Redis covers multi-process deployments.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// sweepInterval is how often expired entries are reclaimed. Reads
// never return expired values regardless; the sweep only bounds
// memory held by months nobody asks for again.
const sweepInterval = time.Minute

// MemoryCache is a process-local Cache for single-node deployments.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	log     *logger.Logger
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache creates an in-memory cache and starts its expiry sweep.
func NewMemoryCache(log *logger.Logger) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]memoryEntry),
		log:     log,
	}
	go c.sweep()
	return c
}

// Get returns the value for key, reporting whether a live entry exists.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores value under key for ttl.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Delete drops key. Deleting a missing key is not an error: booking
// commits invalidate month ranges without checking what was cached.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// Close releases the cache contents.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = nil
	c.log.Info("memory cache closed")
	return nil
}

func (c *MemoryCache) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		if c.entries == nil {
			c.mu.Unlock()
			return
		}
		now := time.Now()
		for key, entry := range c.entries {
			if now.After(entry.expiresAt) {
				delete(c.entries, key)
			}
		}
		c.mu.Unlock()
	}
}

// Len reports the number of entries, expired ones included until the
// next sweep.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
