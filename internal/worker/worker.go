// Package worker drains the transition queue and finalizes outcomes. Running
// it in-process with the API server gives single-node mode; running it as a
// separate process against a Valkey queue gives multi-node mode.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cloudinator/orchestrator/internal/lifecycle"
	"github.com/cloudinator/orchestrator/internal/queue"
)

// Worker processes transition outcome events from the queue.
type Worker struct {
	queue      queue.Queue
	controller *lifecycle.Controller
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// New creates a new worker instance.
func New(q queue.Queue, c *lifecycle.Controller, logger *slog.Logger) *Worker {
	return &Worker{queue: q, controller: c, logger: logger}
}

// Start begins draining the queue. It returns when ctx is cancelled, after
// in-flight finalizations complete.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker shutting down, waiting for finalizations to complete")
			w.wg.Wait()
			w.logger.Info("Worker stopped")
			return ctx.Err()
		default:
			ev, err := w.queue.Dequeue(ctx)
			if err != nil {
				// DeadlineExceeded means the blocking pop timed out on an
				// empty queue, which is just the polling cadence.
				if errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				if ctx.Err() != nil {
					continue
				}
				w.logger.Error("Failed to dequeue transition event", "error", err)
				time.Sleep(time.Second)
				continue
			}
			if ev == nil {
				time.Sleep(100 * time.Millisecond)
				continue
			}

			w.wg.Add(1)
			go func(ev *queue.Event) {
				defer w.wg.Done()
				w.process(ctx, ev)
			}(ev)
		}
	}
}

func (w *Worker) process(ctx context.Context, ev *queue.Event) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Panic recovered while finalizing transition",
				"transition_id", ev.TransitionID, "panic", r)
		}
	}()

	if err := w.controller.Finalize(ctx, ev); err != nil {
		w.logger.Error("Failed to finalize transition",
			"transition_id", ev.TransitionID,
			"outcome", ev.Outcome,
			"error", err)
		return
	}
}
