package middleware

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinSignal/internal/domain/models"
	applogger "FinSignal/pkg/logger"
)

type recordingProc struct {
	mu       sync.Mutex
	readings []*models.IndicatorReading
	fail     bool
	done     chan struct{}
}

func (p *recordingProc) Process(_ context.Context, r *models.IndicatorReading) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("downstream unavailable")
	}
	p.readings = append(p.readings, r)
	if p.done != nil {
		select {
		case p.done <- struct{}{}:
		default:
		}
	}
	return nil
}

func (p *recordingProc) setFail(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = v
}

func (p *recordingProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.readings)
}

type errCountMetrics struct {
	mu   sync.Mutex
	errs map[string]int
}

func newErrCountMetrics() *errCountMetrics {
	return &errCountMetrics{errs: make(map[string]int)}
}

func (m *errCountMetrics) RecordReadingReceived(string, string)          {}
func (m *errCountMetrics) RecordEvaluation(string, string)               {}
func (m *errCountMetrics) RecordSignalEmitted(string, string, string)    {}
func (m *errCountMetrics) RecordSignalSuppressed(string, string, string) {}
func (m *errCountMetrics) RecordLastConfidence(string, float64)          {}
func (m *errCountMetrics) RecordLatency(string, float64)                 {}

func (m *errCountMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[kind]++
}

func (m *errCountMetrics) errCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errs[kind]
}

func reading(instrument, tf string) *models.IndicatorReading {
	return &models.IndicatorReading{
		InstrumentID: instrument,
		Timeframe:    tf,
		Timestamp:    time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC),
		Values:       map[string]float64{models.FieldPrice: 100},
	}
}

func TestPipelineRejectsInvalidReadings(t *testing.T) {
	proc := &recordingProc{}
	metrics := newErrCountMetrics()
	p := NewReadingsPipeline(proc, metrics)
	ctx := context.Background()

	bad := []*models.IndicatorReading{
		nil,
		{Timeframe: "1h", Timestamp: time.Now(), Values: map[string]float64{"price": 1}},
		{InstrumentID: "AAPL", Timeframe: "2h", Timestamp: time.Now(), Values: map[string]float64{"price": 1}},
		{InstrumentID: "AAPL", Timeframe: "1h", Values: map[string]float64{"price": 1}},
		{InstrumentID: "AAPL", Timeframe: "1h", Timestamp: time.Now()},
	}
	for _, r := range bad {
		assert.Error(t, p.Process(ctx, r))
	}
	assert.Zero(t, proc.count(), "invalid readings never reach downstream")
	assert.Equal(t, len(bad), metrics.errCount("pipeline_validate"))
}

func TestPipelineForwardsValidReading(t *testing.T) {
	proc := &recordingProc{}
	p := NewReadingsPipeline(proc, newErrCountMetrics())

	require.NoError(t, p.Process(context.Background(), reading("AAPL", "1h")))
	require.Equal(t, 1, proc.count())
	assert.Equal(t, "AAPL", proc.readings[0].InstrumentID)
}

func TestPipelineThrottlesBursts(t *testing.T) {
	proc := &recordingProc{}
	metrics := newErrCountMetrics()
	p := NewReadingsPipeline(proc, metrics, WithMaxRPS(1))
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, reading("AAPL", "1h")))
	require.NoError(t, p.Process(ctx, reading("AAPL", "1h")), "throttled readings drop silently")
	assert.Equal(t, 1, proc.count())
	assert.Equal(t, 1, metrics.errCount("pipeline_throttle"))

	// Another key is not affected by AAPL's window.
	require.NoError(t, p.Process(ctx, reading("AAPL", "4h")))
	assert.Equal(t, 2, proc.count())
}

func TestPipelineTransform(t *testing.T) {
	proc := &recordingProc{}
	metrics := newErrCountMetrics()
	p := NewReadingsPipeline(proc, metrics, WithTransform(func(r *models.IndicatorReading) *models.IndicatorReading {
		out := *r
		out.InstrumentID = strings.ToUpper(r.InstrumentID)
		return &out
	}))
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, reading("aapl", "1h")))
	require.Equal(t, 1, proc.count())
	assert.Equal(t, "AAPL", proc.readings[0].InstrumentID)

	// A transform that produces an invalid reading is caught.
	broken := NewReadingsPipeline(proc, metrics, WithTransform(func(r *models.IndicatorReading) *models.IndicatorReading {
		out := *r
		out.InstrumentID = ""
		return &out
	}))
	assert.Error(t, broken.Process(ctx, reading("msft", "1h")))
	assert.Equal(t, 1, metrics.errCount("pipeline_transform_invalid"))
}

func TestPipelineBuffersAndReplaysOnRecovery(t *testing.T) {
	proc := &recordingProc{done: make(chan struct{}, 1)}
	proc.setFail(true)
	metrics := newErrCountMetrics()
	p := NewReadingsPipeline(proc, metrics, WithBufferSize(4))
	ctx := context.Background()

	err := p.Process(ctx, reading("AAPL", "1h"))
	require.Error(t, err, "downstream failure surfaces to the intake")
	assert.Equal(t, 1, metrics.errCount("pipeline_process"))

	proc.setFail(false)
	p.Start(ctx)
	defer p.Stop()

	select {
	case <-proc.done:
	case <-time.After(2 * time.Second):
		t.Fatal("buffered reading was not replayed")
	}
	assert.Equal(t, 1, proc.count())
}

func TestPipelineDropLogAggregation(t *testing.T) {
	pub := &batchCapture{batches: make(chan []applogger.AggregatedLogEntry, 1)}
	droplog := applogger.NewLogCollector(&applogger.CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 100,
		Topic:          "finsignal.logs",
		Publisher:      pub,
	})

	proc := &recordingProc{}
	p := NewReadingsPipeline(proc, newErrCountMetrics(), WithMaxRPS(1), WithDropLog(droplog))
	ctx := context.Background()
	p.Start(ctx)

	require.NoError(t, p.Process(ctx, reading("AAPL", "1h")))
	require.NoError(t, p.Process(ctx, reading("AAPL", "1h")))
	require.NoError(t, p.Process(ctx, reading("AAPL", "1h")))

	p.Stop() // closes the collector, flushing pending entries

	select {
	case logs := <-pub.batches:
		require.Len(t, logs, 1, "repeated throttle events collapse into one entry")
		assert.Equal(t, "reading throttled", logs[0].Message)
		assert.Equal(t, 2, logs[0].Count)
		assert.Equal(t, "AAPL", logs[0].Fields["instrument"])
	case <-time.After(2 * time.Second):
		t.Fatal("no aggregated batch published")
	}
}

type batchCapture struct {
	batches chan []applogger.AggregatedLogEntry
}

func (b *batchCapture) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	if logs, ok := payload.([]applogger.AggregatedLogEntry); ok {
		b.batches <- logs
	}
	return nil
}
