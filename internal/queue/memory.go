package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// MemoryQueue implements an in-process event queue for single-node mode.
type MemoryQueue struct {
	mu     sync.RWMutex
	closed bool
	events chan *Event
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	slog.Info("Initialized in-memory transition queue", "buffer_size", bufferSize)
	return &MemoryQueue{events: make(chan *Event, bufferSize)}
}

// Enqueue adds an event to the queue. After Close it returns an error; watch
// goroutines can still be in flight during shutdown and must not panic.
func (q *MemoryQueue) Enqueue(ctx context.Context, ev *Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return fmt.Errorf("queue is closed, dropping event for transition %s", ev.TransitionID)
	}
	select {
	case q.events <- ev:
		slog.Debug("Transition event enqueued", "transition_id", ev.TransitionID, "outcome", ev.Outcome)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("queue is full, could not enqueue event for transition %s", ev.TransitionID)
	}
}

// Dequeue retrieves the next event from the queue
func (q *MemoryQueue) Dequeue(ctx context.Context) (*Event, error) {
	select {
	case ev, ok := <-q.events:
		if !ok {
			return nil, fmt.Errorf("queue is closed")
		}
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close marks the queue closed and closes the channel. It waits for in-flight
// Enqueue calls to drain so none of them hit a closed channel.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.events)
	slog.Info("Memory queue closed")
	return nil
}
