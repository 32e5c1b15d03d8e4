// Package fetchguard keeps late responses from overwriting newer state.
//
// Responses arrive in completion order, not request order. Every fetch is
// tagged when it starts and its result is only kept if the tag is still
// current when it returns.
package fetchguard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Cache memoizes fetch results per key. Invalidate drops everything cached
// and makes results of fetches already in flight unstorable.
type Cache[T any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	gen     uint64
	entries map[string]cacheEntry[T]
}

type cacheEntry[T any] struct {
	value   T
	fetched time.Time
}

// NewCache returns a cache whose entries live for ttl; zero keeps them until
// the next Invalidate.
func NewCache[T any](ttl time.Duration) *Cache[T] {
	return &Cache[T]{ttl: ttl, now: time.Now, entries: make(map[string]cacheEntry[T])}
}

// Get returns the cached value for key or runs fetch. The fetched value is
// returned to the caller either way but only stored if no Invalidate happened
// while it was in flight.
func (c *Cache[T]) Get(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && !c.expired(e) {
		c.mu.Unlock()
		return e.value, nil
	}
	gen := c.gen
	c.mu.Unlock()

	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}

	c.mu.Lock()
	if c.gen == gen {
		c.entries[key] = cacheEntry[T]{value: v, fetched: c.now()}
	}
	c.mu.Unlock()
	return v, nil
}

func (c *Cache[T]) Peek(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.expired(e) {
		var zero T
		return zero, false
	}
	return e.value, true
}

func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	c.gen++
	c.entries = make(map[string]cacheEntry[T])
	c.mu.Unlock()
}

func (c *Cache[T]) expired(e cacheEntry[T]) bool {
	return c.ttl > 0 && c.now().Sub(e.fetched) >= c.ttl
}

// Ticket identifies one request in a Latest sequence.
type Ticket uint64

// Latest hands out monotonically increasing tickets; only the most recently
// issued one is current.
type Latest struct {
	seq atomic.Uint64
}

func (l *Latest) Begin() Ticket {
	return Ticket(l.seq.Add(1))
}

func (l *Latest) Current(t Ticket) bool {
	return l.seq.Load() == uint64(t)
}
