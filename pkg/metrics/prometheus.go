package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	readingsReceived  *prometheus.CounterVec
	evaluationsTotal  *prometheus.CounterVec
	signalsEmitted    *prometheus.CounterVec
	signalsSuppressed *prometheus.CounterVec
	lastConfidence    *prometheus.GaugeVec
	errorsTotal       *prometheus.CounterVec
	latency           *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		readingsReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsignal_readings_received_total",
				Help: "Total number of indicator readings received",
			},
			[]string{"source", "instrument"},
		),
		evaluationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsignal_evaluations_total",
				Help: "Total number of per-timeframe evaluations run",
			},
			[]string{"instrument", "tf"},
		),
		signalsEmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsignal_signals_emitted_total",
				Help: "Total number of signals that passed the emission gate",
			},
			[]string{"instrument", "signal_type", "tf"},
		),
		signalsSuppressed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsignal_signals_suppressed_total",
				Help: "Total number of signals suppressed by deduplication",
			},
			[]string{"instrument", "signal_type", "tf"},
		),
		lastConfidence: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finsignal_last_confidence",
				Help: "Overall confidence of the latest aggregate per instrument",
			},
			[]string{"instrument"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finsignal_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finsignal_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordReadingReceived records one reading accepted from an intake source.
func (r *Recorder) RecordReadingReceived(source, instrument string) {
	r.readingsReceived.WithLabelValues(source, instrument).Inc()
}

// RecordEvaluation records one per-timeframe evaluation.
func (r *Recorder) RecordEvaluation(instrument, tf string) {
	r.evaluationsTotal.WithLabelValues(instrument, tf).Inc()
}

// RecordSignalEmitted records a signal that passed the emission gate.
func (r *Recorder) RecordSignalEmitted(instrument, signalType, tf string) {
	r.signalsEmitted.WithLabelValues(instrument, signalType, tf).Inc()
}

// RecordSignalSuppressed records a signal held back by deduplication.
func (r *Recorder) RecordSignalSuppressed(instrument, signalType, tf string) {
	r.signalsSuppressed.WithLabelValues(instrument, signalType, tf).Inc()
}

// RecordLastConfidence records the latest aggregate confidence.
func (r *Recorder) RecordLastConfidence(instrument string, confidence float64) {
	r.lastConfidence.WithLabelValues(instrument).Set(confidence)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
