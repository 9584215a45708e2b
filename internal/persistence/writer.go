package persistence

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultWriterCapacity = 256
	writeMaxAttempts      = 3
	writeRetryStep        = 300 * time.Millisecond
)

type writeCmd struct {
	name string
	fn   func(context.Context) error
	done chan struct{}
}

// WriterQueue runs database writes one at a time off the caller's goroutine.
type WriterQueue struct {
	logger *slog.Logger
	queue  chan writeCmd
}

func NewWriterQueue(logger *slog.Logger, capacity int) *WriterQueue {
	if capacity <= 0 {
		capacity = defaultWriterCapacity
	}
	if logger == nil {
		logger = slog.Default().With("component", "persistence.writer")
	}

	return &WriterQueue{
		logger: logger,
		queue:  make(chan writeCmd, capacity),
	}
}

// Enqueue never blocks the caller. When the queue is full the command is handed
// off to a goroutine and may run out of order.
func (w *WriterQueue) Enqueue(name string, fn func(context.Context) error) {
	cmd := writeCmd{name: name, fn: fn}
	select {
	case w.queue <- cmd:
	default:
		w.logger.Warn("write queue full", "cmd", name)
		go func() { w.queue <- cmd }()
	}
}

// Flush waits until every command queued before the call has run.
func (w *WriterQueue) Flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case w.queue <- writeCmd{name: "flush", done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *WriterQueue) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case cmd := <-w.queue:
				if cmd.done != nil {
					close(cmd.done)
					continue
				}
				w.runWithRetry(ctx, cmd)
			}
		}
	}()
}

func (w *WriterQueue) runWithRetry(ctx context.Context, cmd writeCmd) {
	for attempt := 1; attempt <= writeMaxAttempts; attempt++ {
		err := cmd.fn(ctx)
		if err == nil {
			return
		}
		w.logger.Error("db write failed", "cmd", cmd.name, "attempt", attempt, "error", err)
		if attempt == writeMaxAttempts {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * writeRetryStep):
		}
	}
}
