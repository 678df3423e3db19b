package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// respPrefix namespaces response-cache keys so they coexist with dedup
// stamps and queue keys on a shared Redis.
const respPrefix = "finsignal:resp:"

// RedisCache backs the response cache with Redis so replicas behind a load
// balancer share hits.
type RedisCache struct {
	rdb *redis.Client
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisCache(cfg RedisConfig) *RedisCache {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	return &RedisCache{rdb: rdb}
}

func (r *RedisCache) GetBytes(key string) ([]byte, bool, error) {
	b, err := r.rdb.Get(context.Background(), respPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	return r.rdb.Set(context.Background(), respPrefix+key, value, ttl).Err()
}

var _ BytesCache = (*RedisCache)(nil)
