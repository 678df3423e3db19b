package queue

import "context"

// Job is a registered handler for one message type.
type Job interface {
	// Name identifies the job in logs and metrics.
	Name() string

	// Type is the message type this job consumes.
	Type() string

	// Handle processes one payload. Returning an error schedules a retry
	// until the retry limit sends the message to the DLQ.
	Handle(ctx context.Context, payload interface{}) error
}
