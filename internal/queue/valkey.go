package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyQueue implements a distributed transition-event queue using Valkey.
// The transition row in the database is the source of truth; the list only
// transports outcome envelopes, so losing the queue loses latency, not state.
type ValkeyQueue struct {
	client valkey.Client
	key    string // Queue key: "cloudinator:transitions"
}

// NewValkeyQueue creates a new Valkey-backed queue
func NewValkeyQueue(addr string) (*ValkeyQueue, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pingCmd := client.B().Ping().Build()
	if err := client.Do(ctx, pingCmd).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Valkey: %w", err)
	}

	q := &ValkeyQueue{
		client: client,
		key:    "cloudinator:transitions",
	}

	slog.Info("Initialized Valkey transition queue",
		"address", addr,
		"queue_key", q.key)
	return q, nil
}

// Enqueue pushes an event onto the Valkey list (RPUSH for FIFO)
func (q *ValkeyQueue) Enqueue(ctx context.Context, ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	cmd := q.client.B().Rpush().Key(q.key).Element(string(data)).Build()
	if err := q.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to push event to Valkey: %w", err)
	}

	slog.Debug("Transition event enqueued",
		"transition_id", ev.TransitionID,
		"outcome", ev.Outcome,
		"queue_key", q.key)
	return nil
}

// Dequeue retrieves the next event from the queue (blocking pop with timeout)
func (q *ValkeyQueue) Dequeue(ctx context.Context) (*Event, error) {
	cmd := q.client.B().Blpop().Key(q.key).Timeout(5).Build()
	result := q.client.Do(ctx, cmd)

	// Parse BLPOP result [key, value]
	values, err := result.AsStrSlice()
	if err != nil {
		// AsStrSlice returns an error when BLPOP times out (valkey nil
		// message); an empty queue is a normal timeout, not a failure
		return nil, context.DeadlineExceeded
	}
	if len(values) < 2 {
		return nil, fmt.Errorf("invalid BLPOP result: expected 2 values, got %d", len(values))
	}

	var ev Event
	if err := json.Unmarshal([]byte(values[1]), &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	slog.Debug("Transition event dequeued",
		"transition_id", ev.TransitionID,
		"outcome", ev.Outcome)
	return &ev, nil
}

// Close closes the Valkey connection
func (q *ValkeyQueue) Close() error {
	q.client.Close()
	slog.Info("Valkey queue closed")
	return nil
}
