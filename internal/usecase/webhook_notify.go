package usecase

import (
	"context"
	"fmt"
	"time"

	"FinSignal/internal/repository"
	"FinSignal/internal/service/ratelimit"
	"FinSignal/pkg/config"
	xhttp "FinSignal/pkg/http"
	applogger "FinSignal/pkg/logger"
	"FinSignal/pkg/queue"
)

// webhookSender POSTs queued signal messages to the configured URL behind a
// token bucket. Handle returns the bucket rejection as an error so the
// queue's retry/backoff owns the pacing instead of blocking a worker.
type webhookSender struct {
	client *xhttp.Client
	rl     *ratelimit.Limiter
	logger *applogger.Logger

	url      string
	capacity float64
	refill   float64 // tokens per second
}

// NewWebhookNotifyJobs builds the queue jobs that deliver emitted signals to
// the configured webhook, one per queued message type.
func NewWebhookNotifyJobs(cfg *config.Config, lgr *applogger.Logger) []queue.Job {
	timeout := cfg.Notify.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	refill := float64(cfg.Notify.RatePerMinute) / 60.0
	if refill <= 0 {
		refill = 1
	}
	capacity := refill * 2
	if capacity < 1 {
		capacity = 1
	}

	s := &webhookSender{
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
		rl:       ratelimit.New(),
		logger:   lgr,
		url:      cfg.Notify.WebhookURL,
		capacity: capacity,
		refill:   refill,
	}
	return []queue.Job{
		&WebhookSignalJob{sender: s},
		&WebhookAggregateJob{sender: s},
	}
}

func (s *webhookSender) post(ctx context.Context, kind string, body interface{}) error {
	if !s.rl.Allow("webhook", s.capacity, s.refill) {
		return fmt.Errorf("webhook rate limit reached")
	}

	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     s.url,
		Headers: map[string]string{"X-Signal-Kind": kind},
		Body:    body,
	}, nil)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}

	s.logger.Debug("webhook delivered", applogger.String("kind", kind))
	return nil
}

// WebhookSignalJob delivers per-timeframe signal messages.
type WebhookSignalJob struct {
	sender *webhookSender
}

func (j *WebhookSignalJob) Name() string { return "webhook_signal" }

func (j *WebhookSignalJob) Type() string { return repository.SignalMessageType }

func (j *WebhookSignalJob) Handle(ctx context.Context, payload interface{}) error {
	msg, err := queue.ParsePayload[repository.SignalMessage](payload)
	if err != nil {
		return fmt.Errorf("parse signal payload: %w", err)
	}
	return j.sender.post(ctx, repository.SignalMessageType, msg)
}

// WebhookAggregateJob delivers cross-timeframe verdict messages.
type WebhookAggregateJob struct {
	sender *webhookSender
}

func (j *WebhookAggregateJob) Name() string { return "webhook_aggregate" }

func (j *WebhookAggregateJob) Type() string { return repository.AggregateMessageType }

func (j *WebhookAggregateJob) Handle(ctx context.Context, payload interface{}) error {
	msg, err := queue.ParsePayload[repository.AggregateMessage](payload)
	if err != nil {
		return fmt.Errorf("parse aggregate payload: %w", err)
	}
	return j.sender.post(ctx, repository.AggregateMessageType, msg)
}

var (
	_ queue.Job = (*WebhookSignalJob)(nil)
	_ queue.Job = (*WebhookAggregateJob)(nil)
)
