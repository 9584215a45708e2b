// Package visibility suspends and resumes the link as the window moves between
// foreground and background.
package visibility

import (
	"log/slog"

	"github.com/irrigo/irrigo/internal/link"
)

// Link is the subset of link.Manager the coordinator drives.
type Link interface {
	State() link.State
	Deferred() bool
	Connect()
	Suspend()
	Resume()
}

// Coordinator maps visibility changes onto link transitions. Like the link it
// drives, it must only be used from the event loop, which serializes rapid
// background/foreground toggles.
type Coordinator struct {
	link       Link
	logger     *slog.Logger
	foreground bool
}

// New returns a coordinator that assumes the window starts in the foreground.
func New(l Link, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default().With("component", "visibility")
	}

	return &Coordinator{link: l, logger: logger, foreground: true}
}

// Foreground reports the last observed visibility. It is the gate the link
// consults before a backoff reattempt.
func (c *Coordinator) Foreground() bool {
	return c.foreground
}

func (c *Coordinator) OnForeground() {
	c.foreground = true

	state := c.link.State()
	switch state {
	case link.StateSuspended:
		c.logger.Debug("foreground: resuming link")
		c.link.Resume()
	case link.StateIdle, link.StateFailed:
		c.logger.Debug("foreground: connecting link", "state", state)
		c.link.Connect()
	case link.StateBackoff:
		if c.link.Deferred() {
			c.logger.Debug("foreground: running deferred reattempt")
			c.link.Connect()
		}
	}
}

func (c *Coordinator) OnBackground() {
	c.foreground = false

	state := c.link.State()
	if state == link.StateOpen || state == link.StateConnecting {
		c.logger.Debug("background: suspending link", "state", state)
		c.link.Suspend()
	}
}
