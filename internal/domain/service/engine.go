package service

import (
	"context"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
)

// ZoneClassifier buckets one scalar into a named zone using per-instrument
// thresholds with market-template fallback.
type ZoneClassifier interface {
	// Match never fails: missing or unreachable configuration degrades to
	// the neutral sentinel zone.
	Match(ctx context.Context, instrumentID string, tf domrepo.Timeframe, indicator string, value float64) models.Zone
	Side(z models.Zone) models.Direction
	Extremity(z models.Zone) float64
}

// TrendEvaluator scores the moving-average stack of a reading.
type TrendEvaluator interface {
	Evaluate(ctx context.Context, r *models.IndicatorReading) models.Signal
	// EvaluateConfirmed drops a directional call to NEUTRAL unless the
	// caller vouches that the same local condition holds one timeframe up.
	EvaluateConfirmed(ctx context.Context, r *models.IndicatorReading, confirmed bool) models.Signal
	// LocalDirection exposes the raw inequality-chain direction so callers
	// can compute the confirmation flag from a higher-timeframe reading.
	LocalDirection(r *models.IndicatorReading) models.Direction
}

// TimingEvaluator scores the oscillator triplet (line, signal, histogram)
// of a reading via zone classification.
type TimingEvaluator interface {
	Evaluate(ctx context.Context, r *models.IndicatorReading) models.Signal
}

// MomentumEvaluator scores abs(histogram) against the "bars" zone set as an
// optional third vote.
type MomentumEvaluator interface {
	Evaluate(ctx context.Context, r *models.IndicatorReading) models.Signal
}

// HybridCombiner merges per-indicator signals into one hybrid signal for a
// single timeframe.
type HybridCombiner interface {
	Combine(trend, timing models.Signal) models.Signal
	CombineThree(trend, timing, momentum models.Signal) models.Signal
}

// TimeframeAggregator merges per-timeframe hybrid signals into one overall
// recommendation per instrument.
type TimeframeAggregator interface {
	Aggregate(instrumentID string, perTimeframe []models.Signal) models.AggregatedSignal
}

// EmissionGate decides whether a signal key may be emitted now, suppressing
// repeats inside the configured window.
type EmissionGate interface {
	ShouldEmit(ctx context.Context, instrumentID string, st models.SignalType, tf domrepo.Timeframe) bool
}
