// Package countdown runs per-relay activation countdowns reconciled against
// controller updates.
package countdown

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/irrigo/irrigo/internal/eventloop"
	"github.com/irrigo/irrigo/internal/protocol"
)

const tick = time.Second

// Display renders the countdown for one relay.
type Display interface {
	Show(index int, seconds int)
	Clear(index int)
}

type entry struct {
	gen       uint64
	remaining int
	timer     eventloop.Timer
}

// Synchronizer owns one countdown per relay index. The controller's state always
// wins: every update cancels the running countdown for that relay before a new
// one is started. It must only be used from the event loop.
type Synchronizer struct {
	sched   eventloop.Scheduler
	display Display
	logger  *slog.Logger

	gen     uint64
	entries map[int]*entry
}

func New(sched eventloop.Scheduler, display Display, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default().With("component", "countdown")
	}

	return &Synchronizer{
		sched:   sched,
		display: display,
		logger:  logger,
		entries: make(map[int]*entry),
	}
}

// OnRelayUpdate reconciles relay index against a controller report.
func (s *Synchronizer) OnRelayUpdate(update protocol.RelayUpdate) {
	s.cancel(update.Index)

	seconds := int(update.RemainingMs / 1000)
	if !update.Active || seconds <= 0 {
		s.display.Clear(update.Index)
		return
	}

	s.gen++
	e := &entry{gen: s.gen, remaining: seconds}
	s.entries[update.Index] = e
	s.display.Show(update.Index, seconds)
	s.arm(update.Index, e)
	s.logger.Debug("countdown started", "relay", update.Index, "seconds", seconds)
}

// Remaining reports the seconds left for index and whether a countdown runs.
func (s *Synchronizer) Remaining(index int) (int, bool) {
	e, ok := s.entries[index]
	if !ok {
		return 0, false
	}

	return e.remaining, true
}

// Active reports how many relays have a running countdown.
func (s *Synchronizer) Active() int {
	return len(s.entries)
}

// Reset cancels every countdown and clears the display.
func (s *Synchronizer) Reset() {
	for index := range s.entries {
		s.cancel(index)
		s.display.Clear(index)
	}
}

func (s *Synchronizer) arm(index int, e *entry) {
	gen := e.gen
	e.timer = s.sched.AfterFunc(tick, func() { s.tick(index, gen) })
}

func (s *Synchronizer) tick(index int, gen uint64) {
	e, ok := s.entries[index]
	if !ok || e.gen != gen {
		return
	}

	e.remaining--
	if e.remaining <= 0 {
		delete(s.entries, index)
		s.display.Clear(index)
		s.logger.Debug("countdown finished", "relay", index)

		return
	}
	s.display.Show(index, e.remaining)
	s.arm(index, e)
}

func (s *Synchronizer) cancel(index int) {
	e, ok := s.entries[index]
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(s.entries, index)
}

// Format renders seconds as m:ss.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}

	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
