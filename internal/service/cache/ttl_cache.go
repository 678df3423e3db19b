package cache

import (
	"sync"
	"time"
)

// sweepThreshold bounds the map before expired entries are reclaimed
// inline. Snapshot, history and threshold keys are few, so this rarely
// triggers.
const sweepThreshold = 4096

type item struct {
	v   any
	exp time.Time
}

// TTLCache is the in-process cache used for rendered API responses and
// threshold memoization. Expired entries are dropped on read, or swept in
// bulk once the map outgrows its threshold.
type TTLCache struct {
	mu    sync.RWMutex
	items map[string]item
}

func NewTTLCache() *TTLCache {
	return &TTLCache{items: make(map[string]item)}
}

func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !it.exp.IsZero() && time.Now().After(it.exp) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil, false
	}
	return it.v, true
}

func (c *TTLCache) Set(key string, v any, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.mu.Lock()
	if len(c.items) >= sweepThreshold {
		now := time.Now()
		for k, it := range c.items {
			if !it.exp.IsZero() && now.After(it.exp) {
				delete(c.items, k)
			}
		}
	}
	c.items[key] = item{v: v, exp: exp}
	c.mu.Unlock()
}

func (c *TTLCache) GetBytes(key string) ([]byte, bool, error) {
	v, ok := c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, isBytes := v.([]byte)
	if !isBytes {
		return nil, false, nil
	}
	return b, true, nil
}

func (c *TTLCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	c.Set(key, value, ttl)
	return nil
}

var _ BytesCache = (*TTLCache)(nil)
