package queue

import "context"

// Job handles one message type.
type Job interface {
	// Name identifies the handler in logs.
	Name() string

	// Type is the message type routed to this handler.
	Type() string

	// Handle processes a payload. Returning an error schedules a retry until
	// the retry limit is exhausted.
	Handle(ctx context.Context, payload interface{}) error
}

// DeadLetterer is implemented by jobs that track outcomes beyond a single
// attempt. The queue calls DeadLetter once, after the last retry failed.
type DeadLetterer interface {
	DeadLetter(ctx context.Context, payload interface{}, err error)
}
