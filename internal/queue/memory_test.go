package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryQueueFIFO(t *testing.T) {
	q := NewMemoryQueue(10)
	defer q.Close()

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		err := q.Enqueue(context.Background(), &Event{TransitionID: id, Outcome: OutcomeConfirmed})
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	for i, want := range ids {
		ev, err := q.Dequeue(context.Background())
		if err != nil {
			t.Fatalf("dequeue %d: %v", i, err)
		}
		if ev.TransitionID != want {
			t.Fatalf("event %d out of order: got %s want %s", i, ev.TransitionID, want)
		}
	}
}

func TestMemoryQueueEnqueueAfterCloseErrors(t *testing.T) {
	q := NewMemoryQueue(1)
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Confirmation watchers can outlive shutdown; a late event is dropped
	// with an error, not a panic.
	err := q.Enqueue(context.Background(), &Event{TransitionID: uuid.New(), Outcome: OutcomeConfirmed})
	if err == nil {
		t.Fatal("expected error enqueueing into a closed queue")
	}

	if _, err := q.Dequeue(context.Background()); err == nil {
		t.Fatal("expected error dequeueing from a closed queue")
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestMemoryQueueDequeueHonorsContext(t *testing.T) {
	q := NewMemoryQueue(1)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Dequeue(ctx); err == nil {
		t.Fatal("expected context error on empty queue")
	}
}
