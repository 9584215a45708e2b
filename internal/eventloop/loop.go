// Package eventloop provides the single logical thread that owns all link state.
//
// Every callback (transport events, heartbeat deadlines, backoff timers, countdown
// ticks) is posted to a Scheduler and executed one at a time, so the components
// built on top of it need no locking of their own.
package eventloop

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop prevents the callback from being posted. It reports false if the timer
	// already fired or was stopped. A callback that was already posted still runs,
	// so callers guard with their own generation token.
	Stop() bool
}

// Scheduler serialises callbacks on one logical thread.
type Scheduler interface {
	Post(f func())
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

// Loop is the goroutine-backed Scheduler used at runtime.
type Loop struct {
	logger *slog.Logger

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
}

func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default().With("component", "eventloop")
	}

	return &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Run executes posted callbacks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Debug("loop started")
	defer func() {
		l.mu.Lock()
		l.closed = true
		l.queue = nil
		l.mu.Unlock()
		l.logger.Debug("loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}

		for {
			f, ok := l.next()
			if !ok {
				break
			}
			f()
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// Post queues f for execution on the loop. It never blocks, even when called
// from inside a running callback. Posts after shutdown are dropped.
func (l *Loop) Post(f func()) {
	if f == nil {
		return
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, f)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, func() { l.Post(f) })
}

func (l *Loop) Now() time.Time {
	return time.Now()
}

// Do runs f on the loop and waits for it to finish or for ctx to end.
func (l *Loop) Do(ctx context.Context, f func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		f()
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	f := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]

	return f, true
}
