package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	"FinSignal/internal/repository"
	"FinSignal/internal/services/engine"
	"FinSignal/pkg/config"
)

type memStorage struct {
	mu         sync.Mutex
	signals    []models.Signal
	aggregates []models.AggregatedSignal
	recordErr  error
	aggErr     error
}

func (s *memStorage) Init(context.Context) error { return nil }

func (s *memStorage) Record(_ context.Context, sig *models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	s.signals = append(s.signals, *sig)
	return nil
}

func (s *memStorage) RecordAggregate(_ context.Context, a *models.AggregatedSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aggErr != nil {
		return s.aggErr
	}
	s.aggregates = append(s.aggregates, *a)
	return nil
}

func (s *memStorage) Recent(context.Context, string, time.Time, time.Time, int) ([]*models.Signal, error) {
	return nil, nil
}

func (s *memStorage) Health(context.Context) error { return nil }
func (s *memStorage) Close() error                 { return nil }

type memNotifier struct {
	mu         sync.Mutex
	signals    []models.Signal
	aggregates []models.AggregatedSignal
	err        error
}

func (n *memNotifier) Notify(_ context.Context, s *models.Signal) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.signals = append(n.signals, *s)
	return nil
}

func (n *memNotifier) NotifyAggregate(_ context.Context, a *models.AggregatedSignal) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.aggregates = append(n.aggregates, *a)
	return nil
}

func (n *memNotifier) Close() error { return nil }

type stubGate struct {
	mu    sync.Mutex
	allow bool
	asked int
}

func (g *stubGate) ShouldEmit(context.Context, string, models.SignalType, domrepo.Timeframe) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.asked++
	return g.allow
}

type countMetrics struct {
	mu         sync.Mutex
	emitted    int
	suppressed int
	errs       map[string]int
}

func newCountMetrics() *countMetrics {
	return &countMetrics{errs: make(map[string]int)}
}

func (m *countMetrics) RecordReadingReceived(string, string) {}
func (m *countMetrics) RecordEvaluation(string, string)      {}

func (m *countMetrics) RecordSignalEmitted(string, string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitted++
}

func (m *countMetrics) RecordSignalSuppressed(string, string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppressed++
}

func (m *countMetrics) RecordLastConfidence(string, float64) {}

func (m *countMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[kind]++
}

func (m *countMetrics) RecordLatency(string, float64) {}

type dispatcherHarness struct {
	d        *SignalDispatcher
	engine   *HybridEngine
	storage  *memStorage
	notifier *memNotifier
	gate     *stubGate
	metrics  *countMetrics
}

// newHarness wires a dispatcher over the real evaluator stack with builtin
// US-market thresholds; storage, notifier, gate and metrics are in-memory.
func newHarness(t *testing.T, policy string, minConf float64) *dispatcherHarness {
	t.Helper()

	cfg := &config.Config{}
	cfg.Engine.Timeframes = []string{"1h"}
	cfg.Engine.MomentumEnabled = true
	cfg.Engine.Aggregation.Policy = policy
	cfg.Engine.Aggregation.MinConfidence = minConf

	src, err := repository.NewConfigThresholdSource(cfg, models.DefaultZoneOrder())
	require.NoError(t, err)
	zones := engine.NewZoneMatcher(cfg, src, repository.NewConfigMarketResolver(cfg), nil)

	metrics := newCountMetrics()
	eng := NewHybridEngine(
		engine.NewTrendStack(cfg),
		engine.NewOscillatorTiming(zones),
		engine.NewHistogramMomentum(zones),
		engine.NewCombiner(cfg),
		metrics,
		[]domrepo.Timeframe{domrepo.TF1h},
	)

	h := &dispatcherHarness{
		engine:   eng,
		storage:  &memStorage{},
		notifier: &memNotifier{},
		gate:     &stubGate{allow: true},
		metrics:  metrics,
	}
	h.d = NewSignalDispatcher(eng, engine.NewMajorityAggregator(), h.gate, h.storage, h.notifier, metrics, cfg)
	return h
}

// bullishReading carries a fully stacked average chain (10% above the long
// average) and an oscillator triplet in bull/bull/pos zones, so every
// evaluator votes BUY.
func bullishReading(instrument, tf string) *models.IndicatorReading {
	return &models.IndicatorReading{
		InstrumentID: instrument,
		Timeframe:    tf,
		Timestamp:    time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC),
		Values: map[string]float64{
			models.FieldPrice:     110,
			models.FieldMAShort1:  105,
			models.FieldMAShort2:  103,
			models.FieldMAShort3:  101,
			models.FieldMALong:    100,
			models.FieldLine:      1.0,
			models.FieldSignal:    0.8,
			models.FieldHistogram: 0.3,
		},
	}
}

func directional(instrument, tf string, dir models.Direction, st models.SignalType, conf float64) models.Signal {
	return models.Signal{
		InstrumentID: instrument,
		Timeframe:    tf,
		Timestamp:    time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC),
		Direction:    dir,
		SignalType:   st,
		Strength:     conf,
		Confidence:   conf,
	}
}

func TestProcessEmitsConfirmedBuy(t *testing.T) {
	h := newHarness(t, "majority", 0.5)
	ctx := context.Background()

	r := bullishReading("AAPL", "1h")
	require.NoError(t, h.d.Process(ctx, r))

	require.Len(t, h.storage.aggregates, 1, "aggregate row is always recorded")
	agg := h.storage.aggregates[0]
	assert.Equal(t, models.DirectionBuy, agg.OverallDirection)
	assert.InDelta(t, 0.639, agg.OverallConfidence, 0.001)
	assert.True(t, agg.Unanimous())
	assert.True(t, agg.Timestamp.Equal(r.Timestamp))

	require.Len(t, h.storage.signals, 1)
	sig := h.storage.signals[0]
	assert.Equal(t, models.SignalStrongBuy, sig.SignalType)
	assert.Equal(t, "1h", sig.Timeframe)
	assert.NotEmpty(t, sig.ID, "emitted signals carry a generated ID")

	require.Len(t, h.notifier.signals, 1)
	assert.Equal(t, sig.ID, h.notifier.signals[0].ID)
	require.Len(t, h.notifier.aggregates, 1)

	assert.Equal(t, 1, h.metrics.emitted)
	assert.Equal(t, 0, h.metrics.suppressed)
}

func TestProcessRejectsNilReading(t *testing.T) {
	h := newHarness(t, "majority", 0)
	require.Error(t, h.d.Process(context.Background(), nil))
	assert.Empty(t, h.storage.aggregates)
}

func TestDispatchGateSuppression(t *testing.T) {
	h := newHarness(t, "majority", 0.5)
	h.gate.allow = false
	ctx := context.Background()

	require.NoError(t, h.d.Process(ctx, bullishReading("AAPL", "1h")))

	require.Len(t, h.storage.aggregates, 1, "aggregate is recorded even when the gate holds")
	assert.Empty(t, h.storage.signals)
	assert.Empty(t, h.notifier.signals)
	assert.Empty(t, h.notifier.aggregates, "no aggregate notification when nothing was emitted")
	assert.Equal(t, 1, h.metrics.suppressed)
	assert.Equal(t, 0, h.metrics.emitted)
}

func TestDispatchConfidenceFloor(t *testing.T) {
	h := newHarness(t, "majority", 0.9)
	ctx := context.Background()

	require.NoError(t, h.d.Process(ctx, bullishReading("AAPL", "1h")))

	require.Len(t, h.storage.aggregates, 1)
	assert.Empty(t, h.storage.signals)
	assert.Zero(t, h.gate.asked, "gate is not consulted below the confidence floor")
}

func TestDispatchMajorityEmitsMatchingSide(t *testing.T) {
	h := newHarness(t, "majority", 0)
	ctx := context.Background()

	perTF := []models.Signal{
		directional("AAPL", "15m", models.DirectionBuy, models.SignalBuy, 0.9),
		directional("AAPL", "1h", models.DirectionSell, models.SignalSell, 0.8),
		directional("AAPL", "4h", models.DirectionBuy, models.SignalBuy, 0.7),
	}
	agg, emitted, err := h.d.Dispatch(ctx, "AAPL", perTF)
	require.NoError(t, err)

	assert.Equal(t, models.DirectionBuy, agg.OverallDirection)
	assert.False(t, agg.Unanimous())
	require.Len(t, emitted, 2, "only constituents on the winning side emit")
	for _, s := range emitted {
		assert.Equal(t, models.DirectionBuy, s.Direction)
		assert.NotEmpty(t, s.ID)
	}
	assert.NotEqual(t, emitted[0].ID, emitted[1].ID)
	assert.Len(t, h.notifier.signals, 2)
	assert.Len(t, h.notifier.aggregates, 1)
}

func TestDispatchUnanimousPolicyBlocksSplitVote(t *testing.T) {
	h := newHarness(t, "unanimous", 0)
	ctx := context.Background()

	perTF := []models.Signal{
		directional("AAPL", "15m", models.DirectionBuy, models.SignalBuy, 0.9),
		directional("AAPL", "1h", models.DirectionSell, models.SignalSell, 0.8),
		directional("AAPL", "4h", models.DirectionBuy, models.SignalBuy, 0.7),
	}
	agg, emitted, err := h.d.Dispatch(ctx, "AAPL", perTF)
	require.NoError(t, err)

	assert.Equal(t, models.DirectionBuy, agg.OverallDirection, "majority direction is still reported")
	assert.Empty(t, emitted)
	require.Len(t, h.storage.aggregates, 1)
	assert.Zero(t, h.gate.asked)
}

func TestDispatchTieIsNeutral(t *testing.T) {
	h := newHarness(t, "majority", 0)
	ctx := context.Background()

	perTF := []models.Signal{
		directional("AAPL", "15m", models.DirectionBuy, models.SignalBuy, 0.9),
		directional("AAPL", "1h", models.DirectionSell, models.SignalSell, 0.9),
	}
	agg, emitted, err := h.d.Dispatch(ctx, "AAPL", perTF)
	require.NoError(t, err)

	assert.Equal(t, models.DirectionNeutral, agg.OverallDirection)
	assert.Empty(t, emitted)
	require.Len(t, h.storage.aggregates, 1, "neutral consensus still leaves an aggregate row")
}

func TestDispatchStorageErrors(t *testing.T) {
	ctx := context.Background()
	buy := directional("AAPL", "1h", models.DirectionBuy, models.SignalBuy, 0.9)

	h := newHarness(t, "majority", 0)
	h.storage.aggErr = errors.New("insert failed")
	_, _, err := h.d.Dispatch(ctx, "AAPL", []models.Signal{buy})
	require.Error(t, err)
	assert.Equal(t, 1, h.metrics.errs["record_aggregate"])

	h = newHarness(t, "majority", 0)
	h.storage.recordErr = errors.New("insert failed")
	_, emitted, err := h.d.Dispatch(ctx, "AAPL", []models.Signal{buy})
	require.Error(t, err)
	assert.Empty(t, emitted)
	assert.Equal(t, 1, h.metrics.errs["record_signal"])
	assert.Empty(t, h.notifier.signals, "a signal that failed to persist is not notified")
}

func TestDispatchToleratesNotifierErrors(t *testing.T) {
	h := newHarness(t, "majority", 0)
	h.notifier.err = errors.New("webhook down")
	ctx := context.Background()

	buy := directional("AAPL", "1h", models.DirectionBuy, models.SignalBuy, 0.9)
	_, emitted, err := h.d.Dispatch(ctx, "AAPL", []models.Signal{buy})
	require.NoError(t, err, "notifier failures do not fail the dispatch")

	require.Len(t, emitted, 1)
	assert.Len(t, h.storage.signals, 1)
	assert.Equal(t, 1, h.metrics.errs["notify_signal"])
	assert.Equal(t, 1, h.metrics.errs["notify_aggregate"])
	assert.Equal(t, 1, h.metrics.emitted)
}

func TestPreviewDoesNotTouchOutputs(t *testing.T) {
	h := newHarness(t, "majority", 0)
	ctx := context.Background()

	h.engine.Observe(ctx, bullishReading("AAPL", "1h"))
	agg := h.d.Preview(ctx, "AAPL")

	assert.Equal(t, models.DirectionBuy, agg.OverallDirection)
	assert.Empty(t, h.storage.aggregates)
	assert.Empty(t, h.storage.signals)
	assert.Empty(t, h.notifier.signals)
	assert.Zero(t, h.gate.asked)
}
