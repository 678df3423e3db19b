package repository

import (
	"context"
	"fmt"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	icache "FinSignal/internal/service/cache"
)

// DefaultThresholdCacheTTL bounds how stale a threshold group may get when
// served from a remote source.
const DefaultThresholdCacheTTL = 5 * time.Minute

// CachedThresholdSource memoizes threshold lookups so the matcher does not
// hit the backing source on every reading. Errors are not cached; a failing
// source is retried on the next lookup.
type CachedThresholdSource struct {
	next domrepo.ThresholdSource
	c    *icache.TTLCache
	ttl  time.Duration
}

func NewCachedThresholdSource(next domrepo.ThresholdSource, ttl time.Duration) *CachedThresholdSource {
	if ttl <= 0 {
		ttl = DefaultThresholdCacheTTL
	}
	return &CachedThresholdSource{next: next, c: icache.NewTTLCache(), ttl: ttl}
}

func (s *CachedThresholdSource) InstrumentThresholds(ctx context.Context, instrumentID string, tf domrepo.Timeframe, indicator string) ([]models.ZoneThreshold, error) {
	key := fmt.Sprintf("i:%s:%s:%s", instrumentID, tf, indicator)
	if v, ok := s.c.Get(key); ok {
		return v.([]models.ZoneThreshold), nil
	}
	rows, err := s.next.InstrumentThresholds(ctx, instrumentID, tf, indicator)
	if err != nil {
		return nil, err
	}
	s.c.Set(key, rows, s.ttl)
	return rows, nil
}

func (s *CachedThresholdSource) MarketThresholds(ctx context.Context, market string, tf domrepo.Timeframe, indicator string) ([]models.ZoneThreshold, error) {
	key := fmt.Sprintf("m:%s:%s:%s", market, tf, indicator)
	if v, ok := s.c.Get(key); ok {
		return v.([]models.ZoneThreshold), nil
	}
	rows, err := s.next.MarketThresholds(ctx, market, tf, indicator)
	if err != nil {
		return nil, err
	}
	s.c.Set(key, rows, s.ttl)
	return rows, nil
}

var _ domrepo.ThresholdSource = (*CachedThresholdSource)(nil)
