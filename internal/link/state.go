package link

import (
	"errors"
	"time"
)

// State is the lifecycle state of the single logical connection.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateSuspended
	StateBackoff
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateSuspended:
		return "suspended"
	case StateBackoff:
		return "backoff"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	// ErrTransport wraps open, send and close failures reported by the transport.
	ErrTransport = errors.New("transport error")
	// ErrLivenessTimeout is recorded when a pong does not arrive in time.
	ErrLivenessTimeout = errors.New("liveness timeout")
	// ErrExhaustedRetries marks the terminal Failed state.
	ErrExhaustedRetries = errors.New("reconnect attempts exhausted")
	// ErrNotOpen is returned for sends dropped because the link is not open.
	ErrNotOpen = errors.New("link is not open")
	// ErrRateLimited is returned for relay commands over the configured rate.
	ErrRateLimited = errors.New("relay command rate limited")
)

// Status is a snapshot of the connection published on every transition.
type Status struct {
	State      State
	Attempt    int
	Epoch      uint64
	RetryIn    time.Duration
	Deferred   bool
	Err        error
	LastPongAt time.Time
	Transport  string
	Target     string
	At         time.Time
}
