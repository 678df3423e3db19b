package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	applogger "FinSignal/pkg/logger"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, r *models.IndicatorReading) error
}

// ReadingsPipeline is a middleware between the intake (WebSocket or Kafka)
// and the evaluation engine. It validates, throttles per instrument and
// timeframe, and buffers when downstream is unavailable.
type ReadingsPipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	maxRPS  int
	bufSize int
	bufCh   chan *models.IndicatorReading
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
	// per instrument+timeframe last accepted time
	lastSeen map[string]time.Time
	// simple format transform hook (optional)
	transform func(*models.IndicatorReading) *models.IndicatorReading
	// aggregated drop/throttle logging (optional)
	droplog *applogger.LogCollector
}

type PipelineOption func(*ReadingsPipeline)

// WithMaxRPS sets the max readings per second per instrument and timeframe.
func WithMaxRPS(n int) PipelineOption {
	return func(p *ReadingsPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *ReadingsPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a transformation hook to normalize reading format.
func WithTransform(fn func(*models.IndicatorReading) *models.IndicatorReading) PipelineOption {
	return func(p *ReadingsPipeline) { p.transform = fn }
}

// WithDropLog routes throttle and drop events through an aggregating
// collector. One entry per instrument and timeframe instead of one log line
// per reading. The pipeline owns the collector and closes it on Stop.
func WithDropLog(c *applogger.LogCollector) PipelineOption {
	return func(p *ReadingsPipeline) { p.droplog = c }
}

// NewReadingsPipeline creates a new pipeline.
func NewReadingsPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *ReadingsPipeline {
	p := &ReadingsPipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   10,   // default throttle per instrument+timeframe
		bufSize:  1000, // default buffer
		bufCh:    make(chan *models.IndicatorReading, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan *models.IndicatorReading, p.bufSize)
	}
	return p
}

// Start launches background flushing of buffered readings.
func (p *ReadingsPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case r := <-p.bufCh:
				if r == nil {
					continue
				}
				if err := p.proc.Process(ctx, r); err != nil {
					// exponential backoff with cap
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- r:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *ReadingsPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	if p.droplog != nil {
		p.droplog.Close()
	}
}

// Process validates, throttles, and forwards the reading downstream,
// buffering on errors.
func (p *ReadingsPipeline) Process(ctx context.Context, r *models.IndicatorReading) error {
	start := time.Now()
	if err := validateReading(r); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		r = p.transform(r)
		if err := validateReading(r); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if !p.allow(r.InstrumentID+"|"+r.Timeframe, start) {
		// throttled; record and drop silently
		p.metrics.RecordError("pipeline_throttle")
		p.dropLog("warn", "reading throttled", r)
		return nil
	}

	if err := p.proc.Process(ctx, r); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- r:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
			p.dropLog("error", "reading dropped, buffer full", r)
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func (p *ReadingsPipeline) dropLog(level, msg string, r *models.IndicatorReading) {
	if p.droplog == nil {
		return
	}
	p.droplog.AddLog(level, msg, map[string]interface{}{
		"instrument": r.InstrumentID,
		"tf":         r.Timeframe,
	}, "readings_pipeline")
}

func validateReading(r *models.IndicatorReading) error {
	if r == nil {
		return fmt.Errorf("reading nil")
	}
	if r.InstrumentID == "" {
		return fmt.Errorf("instrument empty")
	}
	if !domrepo.IsValidTimeframe(domrepo.Timeframe(r.Timeframe)) {
		return fmt.Errorf("unsupported timeframe '%s'", r.Timeframe)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("timestamp invalid")
	}
	if len(r.Values) == 0 {
		return fmt.Errorf("values empty")
	}
	return nil
}

func (p *ReadingsPipeline) allow(key string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	// simple throttle: ensure at most maxRPS per second per key
	last := p.lastSeen[key]
	if last.IsZero() {
		p.lastSeen[key] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[key] = now
	return true
}
