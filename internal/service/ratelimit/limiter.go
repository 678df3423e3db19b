// Package ratelimit provides per-key token buckets. The API handlers bucket
// by remote address and endpoint; the webhook sender paces itself with a
// single shared key.
package ratelimit

import (
	"sync"
	"time"
)

// evictThreshold bounds the bucket map. Remote addresses churn, so idle
// buckets are reclaimed once the map outgrows this.
const evictThreshold = 8192

// idleAfter is how long a bucket may sit untouched before eviction.
const idleAfter = 10 * time.Minute

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter holds one token bucket per key. Capacity and refill rate travel
// with each Allow call, so different callers can impose different shapes on
// the same limiter.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func New() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket)}
}

// Allow consumes one token for key when available. capacity is the burst
// size, refillPerSec the sustained rate.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= evictThreshold {
			l.evict(now)
		}
		b = &bucket{tokens: capacity, last: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * refillPerSec
		if b.tokens > capacity {
			b.tokens = capacity
		}
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

func (l *Limiter) evict(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.last) > idleAfter {
			delete(l.buckets, k)
		}
	}
}
