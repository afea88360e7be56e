package cache

import (
	"bytes"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is the process-local tier in front of the disk cache. It holds
// copies of response payloads, so callers may reuse their buffers after Set.
// Expired entries are swept every cleanupInterval.
type MemoryCache struct {
	entries *gocache.Cache
}

func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{entries: gocache.New(defaultTTL, cleanupInterval)}
}

// Get returns the payload stored under key. Anything other than a byte
// slice under the key counts as a miss.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	switch v, _ := c.entries.Get(key); payload := v.(type) {
	case []byte:
		return payload, true
	default:
		return nil, false
	}
}

// Set stores a copy of value. A zero ttl falls back to the default given to
// NewMemoryCache.
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.entries.Set(key, bytes.Clone(value), ttl)
	return nil
}

func (c *MemoryCache) Delete(key string) error {
	c.entries.Delete(key)
	return nil
}

func (c *MemoryCache) Clear() error {
	c.entries.Flush()
	return nil
}
