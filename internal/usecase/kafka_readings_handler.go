package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	mid "FinSignal/internal/middleware"
	pkgkafka "FinSignal/pkg/kafka"

	"github.com/segmentio/kafka-go"
)

// KafkaReadingsHandler consumes reading envelopes from Kafka and feeds the
// evaluation pipeline.
type KafkaReadingsHandler struct {
	topic   string
	proc    mid.Proc
	metrics domrepo.Metrics
}

func NewKafkaReadingsHandler(topic string, proc mid.Proc, metrics domrepo.Metrics) *KafkaReadingsHandler {
	return &KafkaReadingsHandler{topic: topic, proc: proc, metrics: metrics}
}

func (h *KafkaReadingsHandler) Topic() string { return h.topic }

// incoming message schema: {instrument_id, tf, ts, values}
func (h *KafkaReadingsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		InstrumentID string             `json:"instrument_id"`
		TF           string             `json:"tf"`
		TS           int64              `json:"ts"`
		Values       map[string]float64 `json:"values"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.InstrumentID == "" {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("reading without instrument_id")
	}
	ts := time.Unix(m.TS, 0)
	if m.TS > 1e11 { // ms
		ts = time.UnixMilli(m.TS)
	}
	// E2E latency from event time to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(ts).Seconds())
	h.metrics.RecordReadingReceived("kafka", m.InstrumentID)

	return h.proc.Process(ctx, &models.IndicatorReading{
		InstrumentID: m.InstrumentID,
		Timeframe:    m.TF,
		Timestamp:    ts.UTC(),
		Values:       m.Values,
	})
}

var _ pkgkafka.MessageHandler = (*KafkaReadingsHandler)(nil)

// NewConsumerMetricsHook threads trace ids and start times through the
// consumer context and counts handler failures.
func NewConsumerMetricsHook(m domrepo.Metrics) pkgkafka.ConsumerHook {
	return pkgkafka.HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			ctx = pkgkafka.WithStartTime(ctx, time.Now())
			ctx = pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km))
			return ctx, km, data, nil
		},
		Err: func(context.Context, string, kafka.Message, []byte, error) {
			m.RecordError("consumer_handle")
		},
	}
}
