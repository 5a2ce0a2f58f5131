package queue

import (
	"context"

	"github.com/google/uuid"
)

// Outcome of an adapter round trip, as observed at the adapter boundary.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
)

// Event carries one adapter confirmation from the controller's watch
// goroutine to the worker that finalizes the transition. The transition row
// in the database is the source of truth; the event only transports the
// outcome.
type Event struct {
	TransitionID uuid.UUID `json:"transition_id"`
	Outcome      Outcome   `json:"outcome"`
	Error        string    `json:"error,omitempty"`
}

// Queue transports transition events between the controller and the worker.
type Queue interface {
	// Enqueue adds an event to the queue
	Enqueue(ctx context.Context, ev *Event) error

	// Dequeue retrieves the next event, blocking until one is available or
	// the context is done
	Dequeue(ctx context.Context) (*Event, error)

	// Close closes the queue and releases resources
	Close() error
}
