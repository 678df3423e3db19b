package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	domsvc "FinSignal/internal/domain/service"
	"FinSignal/pkg/config"
)

// SignalDispatcher turns per-timeframe hybrid signals into persisted and
// notified output: aggregate, apply the aggregation policy, gate each
// constituent through the dedup window, then fan out to storage and the
// configured notifier.
type SignalDispatcher struct {
	engine   *HybridEngine
	agg      domsvc.TimeframeAggregator
	gate     domsvc.EmissionGate
	storage  domrepo.SignalStorage
	notifier domrepo.Notifier
	metrics  domrepo.Metrics

	policy  string // "majority" or "unanimous"
	minConf float64
}

// NewSignalDispatcher creates a new SignalDispatcher instance.
func NewSignalDispatcher(
	engine *HybridEngine,
	agg domsvc.TimeframeAggregator,
	gate domsvc.EmissionGate,
	storage domrepo.SignalStorage,
	notifier domrepo.Notifier,
	metrics domrepo.Metrics,
	cfg *config.Config,
) *SignalDispatcher {
	policy := cfg.Engine.Aggregation.Policy
	if policy == "" {
		policy = "majority"
	}
	return &SignalDispatcher{
		engine:   engine,
		agg:      agg,
		gate:     gate,
		storage:  storage,
		notifier: notifier,
		metrics:  metrics,
		policy:   policy,
		minConf:  cfg.Engine.Aggregation.MinConfidence,
	}
}

// Process re-evaluates the reading's instrument across all live snapshots
// and dispatches the outcome. Implements the pipeline's Proc contract.
func (d *SignalDispatcher) Process(ctx context.Context, r *models.IndicatorReading) error {
	if r == nil {
		return fmt.Errorf("reading is nil")
	}
	d.engine.Observe(ctx, r)
	perTF := d.engine.EvaluateInstrument(ctx, r.InstrumentID)
	_, _, err := d.Dispatch(ctx, r.InstrumentID, perTF)
	return err
}

// Preview aggregates the instrument's live snapshots without touching the
// dedup window, storage or the notifier. Serves read-only API lookups.
func (d *SignalDispatcher) Preview(ctx context.Context, instrumentID string) models.AggregatedSignal {
	perTF := d.engine.EvaluateInstrument(ctx, instrumentID)
	return d.agg.Aggregate(instrumentID, perTF)
}

// Dispatch aggregates, records, and emits. The aggregate row is always
// recorded; constituent signals are recorded and notified only when the
// aggregate passes the policy and the dedup gate lets them through. Returns
// the aggregate and the constituents that were actually emitted.
func (d *SignalDispatcher) Dispatch(ctx context.Context, instrumentID string, perTF []models.Signal) (*models.AggregatedSignal, []models.Signal, error) {
	start := time.Now()

	agg := d.agg.Aggregate(instrumentID, perTF)
	d.metrics.RecordLastConfidence(instrumentID, agg.OverallConfidence)

	if err := d.storage.RecordAggregate(ctx, &agg); err != nil {
		d.metrics.RecordError("record_aggregate")
		return &agg, nil, fmt.Errorf("record aggregate: %w", err)
	}

	if !d.passes(&agg) {
		d.metrics.RecordLatency("dispatch", time.Since(start).Seconds())
		return &agg, nil, nil
	}

	var emitted []models.Signal
	for _, s := range agg.Matching() {
		if s.SignalType == models.SignalNeutral {
			continue
		}
		if !d.gate.ShouldEmit(ctx, s.InstrumentID, s.SignalType, domrepo.Timeframe(s.Timeframe)) {
			d.metrics.RecordSignalSuppressed(s.InstrumentID, string(s.SignalType), s.Timeframe)
			continue
		}
		s.ID = uuid.NewString()
		if err := d.storage.Record(ctx, &s); err != nil {
			d.metrics.RecordError("record_signal")
			return &agg, emitted, fmt.Errorf("record signal: %w", err)
		}
		if d.notifier != nil {
			if err := d.notifier.Notify(ctx, &s); err != nil {
				d.metrics.RecordError("notify_signal")
			}
		}
		d.metrics.RecordSignalEmitted(s.InstrumentID, string(s.SignalType), s.Timeframe)
		emitted = append(emitted, s)
	}

	if len(emitted) > 0 && d.notifier != nil {
		if err := d.notifier.NotifyAggregate(ctx, &agg); err != nil {
			d.metrics.RecordError("notify_aggregate")
		}
	}

	d.metrics.RecordLatency("dispatch", time.Since(start).Seconds())
	return &agg, emitted, nil
}

// passes applies the aggregation policy. A NEUTRAL consensus never emits.
func (d *SignalDispatcher) passes(agg *models.AggregatedSignal) bool {
	if agg.OverallDirection == models.DirectionNeutral {
		return false
	}
	if agg.OverallConfidence < d.minConf {
		return false
	}
	if d.policy == "unanimous" && !agg.Unanimous() {
		return false
	}
	return true
}

// Close closes underlying resources if available.
func (d *SignalDispatcher) Close() {
	if d.notifier != nil {
		_ = d.notifier.Close()
	}
	if d.storage != nil {
		_ = d.storage.Close()
	}
}
