package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher runs tasks in the background, detached from the request that
// spawned them. A finalized record is forwarded to its mailbox this way so
// accepting an inbound email never waits on mailbox storage; failures are
// logged, never surfaced to the sender.
type Dispatcher struct {
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher whose tasks get 30 seconds each.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{logger: logger, timeout: 30 * time.Second}
}

// Go runs fn on its own goroutine with a fresh deadline-bound context.
func (d *Dispatcher) Go(task string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			d.logger.Error("background task failed", "task", task, "error", err)
		}
	}()
}

// Drain waits for all in-flight tasks, bounded by ctx.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
