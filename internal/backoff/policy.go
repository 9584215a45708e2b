// Package backoff decides whether and when a dropped link is re-established.
package backoff

import "time"

const (
	DefaultBase        = 5 * time.Second
	DefaultMax         = 30 * time.Second
	DefaultMaxAttempts = 5
)

// Policy is a linear, capped reconnection schedule. The delay grows by Base per
// attempt and never exceeds Max, which bounds the worst-case reconnect latency
// on a local network. MaxAttempts <= 0 means retries are unbounded.
type Policy struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

func Default() Policy {
	return Policy{
		Base:        DefaultBase,
		Max:         DefaultMax,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// NextDelay returns min(Max, (attempt+1)*Base).
func (p Policy) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if p.Base <= 0 {
		return 0
	}
	limit := p.Max
	if limit < p.Base {
		limit = p.Base
	}
	// Guard the multiplication against overflow for huge attempt counts.
	if int64(attempt+1) > int64(limit/p.Base) {
		return limit
	}

	return time.Duration(attempt+1) * p.Base
}

// ShouldRetry reports whether another reconnect may be scheduled after attempt
// failed attempts.
func (p Policy) ShouldRetry(attempt int) bool {
	if p.MaxAttempts <= 0 {
		return true
	}

	return attempt < p.MaxAttempts
}

// Unbounded reports whether the policy never gives up.
func (p Policy) Unbounded() bool {
	return p.MaxAttempts <= 0
}
