// Package cache provides a small generic TTL cache for remote reads.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// TTL caches values per key until they expire or are invalidated.
type TTL[T any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]entry[T]
}

// New creates a cache. A non-positive ttl disables caching.
func New[T any](ttl time.Duration) *TTL[T] {
	return &TTL[T]{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]entry[T]),
	}
}

// WithClock swaps the time source; used by tests.
func (c *TTL[T]) WithClock(now func() time.Time) *TTL[T] {
	c.now = now
	return c
}

func (c *TTL[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.items, key)
		return zero, false
	}
	return e.value, true
}

func (c *TTL[T]) Set(key string, value T) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[T]{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Invalidate drops key, or everything when no key is given.
func (c *TTL[T]) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(keys) == 0 {
		c.items = make(map[string]entry[T])
		return
	}
	for _, k := range keys {
		delete(c.items, k)
	}
}

// CleanExpired removes expired entries and returns how many were dropped.
func (c *TTL[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for k, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

func (c *TTL[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
