// Package cache provides the result cache dependency the executor consumes.
// The contract is deliberately small so a host can plug in Redis or any
// other store; the in-memory implementation here covers single-process use.
package cache

import (
	"sync"
	"time"
)

// Cache computes a value once per key and serves it until the ttl expires.
// The second return reports whether the value was served from cache.
type Cache interface {
	GetOrStore(key string, ttl time.Duration, fn func() (any, error)) (any, bool, error)
}

type entry struct {
	ready     chan struct{}
	value     any
	err       error
	expiresAt time.Time
}

// MemoryCache is a thread-safe in-process Cache. Concurrent callers for the
// same key block on a single producer run rather than racing.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*entry)}
}

func (c *MemoryCache) GetOrStore(key string, ttl time.Duration, fn func() (any, error)) (any, bool, error) {
	if ttl <= 0 {
		value, err := fn()
		return value, false, err
	}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.mu.Unlock()
		<-e.ready
		if e.err == nil && time.Now().Before(e.expiresAt) {
			return e.value, true, nil
		}
		// Expired or failed; drop it and recompute.
		c.mu.Lock()
		if c.entries[key] == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return c.GetOrStore(key, ttl, fn)
	}

	e := &entry{ready: make(chan struct{})}
	c.entries[key] = e
	c.mu.Unlock()

	e.value, e.err = fn()
	e.expiresAt = time.Now().Add(ttl)
	close(e.ready)

	if e.err != nil {
		c.mu.Lock()
		if c.entries[key] == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, e.err
	}
	return e.value, false, nil
}

// Invalidate drops a key so the next GetOrStore recomputes it.
func (c *MemoryCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

var _ Cache = (*MemoryCache)(nil)
