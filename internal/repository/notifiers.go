package repository

import (
	"context"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	pkgkafka "FinSignal/pkg/kafka"
	"FinSignal/pkg/queue"
)

// Queue message types consumed by the notification workers.
const (
	SignalMessageType    = "signal.emitted"
	AggregateMessageType = "signal.aggregate"
)

// SignalMessage is the wire form of an emitted per-timeframe signal.
type SignalMessage struct {
	ID           string    `json:"id,omitempty"`
	InstrumentID string    `json:"instrument_id"`
	Timeframe    string    `json:"tf"`
	Timestamp    time.Time `json:"ts"`
	Direction    string    `json:"direction"`
	SignalType   string    `json:"signal_type"`
	Strength     float64   `json:"strength"`
	Confidence   float64   `json:"confidence"`
	Rationale    string    `json:"rationale"`
}

// AggregateMessage is the wire form of a cross-timeframe verdict.
type AggregateMessage struct {
	InstrumentID      string          `json:"instrument_id"`
	Timestamp         time.Time       `json:"ts"`
	OverallDirection  string          `json:"direction"`
	OverallConfidence float64         `json:"confidence"`
	AgreementRatio    float64         `json:"agreement_ratio"`
	PerTimeframe      []SignalMessage `json:"per_timeframe"`
}

func ToSignalMessage(s *models.Signal) SignalMessage {
	return SignalMessage{
		ID:           s.ID,
		InstrumentID: s.InstrumentID,
		Timeframe:    s.Timeframe,
		Timestamp:    s.Timestamp,
		Direction:    string(s.Direction),
		SignalType:   string(s.SignalType),
		Strength:     s.Strength,
		Confidence:   s.Confidence,
		Rationale:    s.Rationale,
	}
}

func ToAggregateMessage(a *models.AggregatedSignal) AggregateMessage {
	perTF := make([]SignalMessage, 0, len(a.PerTimeframe))
	for i := range a.PerTimeframe {
		perTF = append(perTF, ToSignalMessage(&a.PerTimeframe[i]))
	}
	return AggregateMessage{
		InstrumentID:      a.InstrumentID,
		Timestamp:         a.Timestamp,
		OverallDirection:  string(a.OverallDirection),
		OverallConfidence: a.OverallConfidence,
		AgreementRatio:    a.AgreementRatio,
		PerTimeframe:      perTF,
	}
}

// KafkaNotifier implements Notifier on the signals topic. Downstream
// consumers (chat bridges, alert routers) read from there.
type KafkaNotifier struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaNotifier creates a Kafka-backed notifier.
func NewKafkaNotifier(producer *pkgkafka.Producer, topic string) domrepo.Notifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (n *KafkaNotifier) Notify(ctx context.Context, s *models.Signal) error {
	return n.producer.Publish(ctx, n.topic, []byte(s.InstrumentID), ToSignalMessage(s))
}

func (n *KafkaNotifier) NotifyAggregate(ctx context.Context, a *models.AggregatedSignal) error {
	return n.producer.Publish(ctx, n.topic, []byte(a.InstrumentID), ToAggregateMessage(a))
}

func (n *KafkaNotifier) Close() error {
	if n.producer != nil {
		return n.producer.Close()
	}
	return nil
}

// QueueNotifier implements Notifier by enqueueing messages for the local
// webhook dispatch workers.
type QueueNotifier struct {
	q queue.QueueService
}

// NewQueueNotifier creates a queue-backed notifier. Queue lifecycle stays
// with the composition root.
func NewQueueNotifier(q queue.QueueService) domrepo.Notifier {
	return &QueueNotifier{q: q}
}

func (n *QueueNotifier) Notify(ctx context.Context, s *models.Signal) error {
	return n.q.PublishMessage(ctx, SignalMessageType, ToSignalMessage(s))
}

func (n *QueueNotifier) NotifyAggregate(ctx context.Context, a *models.AggregatedSignal) error {
	return n.q.PublishMessage(ctx, AggregateMessageType, ToAggregateMessage(a))
}

func (n *QueueNotifier) Close() error { return nil }

// NopNotifier drops everything. Used when notification is disabled.
type NopNotifier struct{}

func NewNopNotifier() domrepo.Notifier { return &NopNotifier{} }

func (n *NopNotifier) Notify(context.Context, *models.Signal) error { return nil }

func (n *NopNotifier) NotifyAggregate(context.Context, *models.AggregatedSignal) error {
	return nil
}

func (n *NopNotifier) Close() error { return nil }
