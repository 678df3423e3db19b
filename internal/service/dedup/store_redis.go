package dedup

import (
	"context"
	"time"

	"FinSignal/pkg/cache"
)

// RedisStore backs suppression with the shared cache service so the window
// survives restarts and is shared across replicas. TryLock is SET NX with a
// TTL, which is exactly the check-and-stamp contract.
type RedisStore struct {
	cache cache.Service
}

func NewRedisStore(c cache.Service) *RedisStore {
	return &RedisStore{cache: c}
}

func (s *RedisStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.cache.TryLock(ctx, "dedup:"+key, ttl)
}

var _ Store = (*RedisStore)(nil)
