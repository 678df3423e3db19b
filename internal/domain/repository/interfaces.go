package repository

import (
	"context"
	"time"

	"FinSignal/internal/domain/models"
)

// ReadingStream is a live feed of indicator readings from the upstream
// numeric layer.
type ReadingStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.IndicatorReading, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Notifier dispatches emitted signals toward downstream transports. The
// transports themselves (chat, mail, anything consuming the topic/queue)
// live outside this service.
type Notifier interface {
	Notify(ctx context.Context, s *models.Signal) error
	NotifyAggregate(ctx context.Context, a *models.AggregatedSignal) error
	Close() error
}

// SignalStorage persists emitted signals and serves history queries.
type SignalStorage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Record(ctx context.Context, s *models.Signal) error
	RecordAggregate(ctx context.Context, a *models.AggregatedSignal) error
	Recent(ctx context.Context, instrumentID string, from, to time.Time, limit int) ([]*models.Signal, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// ThresholdSource resolves zone threshold rows for an owner key. Instrument
// lookup and market-template lookup are separate so the matcher can apply
// its fallback chain explicitly.
type ThresholdSource interface {
	InstrumentThresholds(ctx context.Context, instrumentID string, tf Timeframe, indicator string) ([]models.ZoneThreshold, error)
	MarketThresholds(ctx context.Context, market string, tf Timeframe, indicator string) ([]models.ZoneThreshold, error)
}

// MarketResolver classifies an instrument into a market ("US", "VN", ...).
type MarketResolver interface {
	MarketOf(instrumentID string) string
}

// Metrics records engine observability events.
type Metrics interface {
	RecordReadingReceived(source, instrument string)
	RecordEvaluation(instrument, tf string)
	RecordSignalEmitted(instrument, signalType, tf string)
	RecordSignalSuppressed(instrument, signalType, tf string)
	RecordLastConfidence(instrument string, confidence float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
