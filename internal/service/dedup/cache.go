package dedup

import (
	"context"
	"fmt"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	domsvc "FinSignal/internal/domain/service"
	applogger "FinSignal/pkg/logger"
)

// DefaultTTL is the suppression window applied when no override is
// configured.
const DefaultTTL = 30 * time.Minute

// Store is the suppression backend. Acquire must be check-and-stamp in one
// step: it returns true and records key for ttl when no live entry exists,
// false without touching the entry otherwise.
type Store interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Cache suppresses repeat emissions of the same (instrument, signal type,
// timeframe) key inside the TTL window.
type Cache struct {
	store    Store
	ttl      time.Duration
	failOpen bool
	logger   *applogger.Logger
}

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithFailOpen controls backend-error behavior: true lets the signal
// through (duplicates possible), false suppresses it (signals can be lost).
func WithFailOpen(open bool) Option {
	return func(c *Cache) { c.failOpen = open }
}

func WithLogger(lgr *applogger.Logger) Option {
	return func(c *Cache) { c.logger = lgr }
}

func New(store Store, opts ...Option) *Cache {
	c := &Cache{store: store, ttl: DefaultTTL, failOpen: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key builds the suppression key. Identical signal types on different
// timeframes dedupe independently.
func Key(instrumentID string, st models.SignalType, tf domrepo.Timeframe) string {
	return fmt.Sprintf("%s:%s:%s", instrumentID, st, tf)
}

// ShouldEmit reports whether the signal key may go out now. An allowed
// emission stamps the key for the full window; a suppressed one leaves the
// original stamp untouched.
func (c *Cache) ShouldEmit(ctx context.Context, instrumentID string, st models.SignalType, tf domrepo.Timeframe) bool {
	key := Key(instrumentID, st, tf)
	ok, err := c.store.Acquire(ctx, key, c.ttl)
	if err != nil {
		if c.logger != nil {
			c.logger.Error("dedup store unavailable",
				applogger.String("key", key),
				applogger.Bool("fail_open", c.failOpen),
				applogger.Error(err))
		}
		return c.failOpen
	}
	return ok
}

var _ domsvc.EmissionGate = (*Cache)(nil)
