package cache

import (
	"sync"
	"time"
)

// TTL is an in-process map whose entries expire. Expired entries are dropped
// lazily on read and in bulk by Sweep.
type TTL[V any] struct {
	mu  sync.RWMutex
	ttl time.Duration
	now func() time.Time
	m   map[string]ttlEntry[V]
}

type ttlEntry[V any] struct {
	val V
	exp time.Time
}

func NewTTL[V any](ttl time.Duration, now func() time.Time) *TTL[V] {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if now == nil {
		now = time.Now
	}

	return &TTL[V]{
		ttl: ttl,
		now: now,
		m:   make(map[string]ttlEntry[V]),
	}
}

func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()

	if ok && c.now().Before(e.exp) {
		return e.val, true
	}

	if ok {
		c.mu.Lock()
		// re-check; a concurrent Set may have refreshed it
		if cur, still := c.m[key]; still && !c.now().Before(cur.exp) {
			delete(c.m, key)
		}
		c.mu.Unlock()
	}

	var zero V
	return zero, false
}

func (c *TTL[V]) Set(key string, val V) {
	c.mu.Lock()
	c.m[key] = ttlEntry[V]{val: val, exp: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}

// Sweep removes every expired entry and reports how many are left.
func (c *TTL[V]) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.m {
		if !now.Before(e.exp) {
			delete(c.m, k)
		}
	}

	return len(c.m)
}
