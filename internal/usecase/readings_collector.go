package usecase

import (
	"context"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	mid "FinSignal/internal/middleware"
)

// ReadingsCollector collects readings from the feed stream and pushes them
// through the pipeline into the dispatcher.
type ReadingsCollector struct {
	stream  domrepo.ReadingStream
	disp    *SignalDispatcher
	metrics domrepo.Metrics
	pipe    *mid.ReadingsPipeline
}

// NewReadingsCollector creates a new ReadingsCollector instance.
func NewReadingsCollector(stream domrepo.ReadingStream, disp *SignalDispatcher, metrics domrepo.Metrics, pipe *mid.ReadingsPipeline) *ReadingsCollector {
	return &ReadingsCollector{stream: stream, disp: disp, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the feed stream is connected.
func (c *ReadingsCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *ReadingsCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	rCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, rCh, errCh)
	return nil
}

func (c *ReadingsCollector) consume(ctx context.Context, rCh <-chan *models.IndicatorReading, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case r := <-rCh:
			if r == nil {
				continue
			}
			c.metrics.RecordReadingReceived("websocket", r.InstrumentID)
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, r)
			} else {
				_ = c.disp.Process(ctx, r)
			}
		}
	}
}

func (c *ReadingsCollector) Stop() error { return c.stream.Close() }

// Dispatcher returns the underlying SignalDispatcher for lifecycle management.
func (c *ReadingsCollector) Dispatcher() *SignalDispatcher { return c.disp }

// Shutdown stops the pipeline and closes the stream.
func (c *ReadingsCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
