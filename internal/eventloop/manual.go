package eventloop

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Scheduler driven by a virtual clock. Posted callbacks run on the
// caller's goroutine; timers fire only when Advance moves the clock past them.
// Nested posts are queued and drained in order, matching the Loop's semantics.
type Manual struct {
	mu       sync.Mutex
	now      time.Time
	queue    []func()
	timers   []*manualTimer
	seq      uint64
	draining bool
}

type manualTimer struct {
	owner   *Manual
	at      time.Time
	seq     uint64
	f       func()
	fired   bool
	stopped bool
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.now
}

func (m *Manual) Post(f func()) {
	if f == nil {
		return
	}

	m.mu.Lock()
	m.queue = append(m.queue, f)
	if m.draining {
		m.mu.Unlock()
		return
	}
	m.draining = true
	m.mu.Unlock()

	m.drain()
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTimer{owner: m, at: m.now.Add(d), seq: m.seq, f: f}
	m.timers = append(m.timers, t)

	return t
}

// Advance moves the clock forward by d, firing every due timer in deadline order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		m.Post(t.f)
	}

	m.mu.Lock()
	if m.now.Before(target) {
		m.now = target
	}
	m.mu.Unlock()
}

// Pending reports how many timers are armed and not yet fired.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}

	return n
}

func (m *Manual) nextDue(target time.Time) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.fired && !t.stopped {
			live = append(live, t)
		}
	}
	m.timers = live
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].at.Equal(m.timers[j].at) {
			return m.timers[i].seq < m.timers[j].seq
		}

		return m.timers[i].at.Before(m.timers[j].at)
	})

	if len(m.timers) == 0 || m.timers[0].at.After(target) {
		return nil
	}
	t := m.timers[0]
	t.fired = true
	if t.at.After(m.now) {
		m.now = t.at
	}

	return t
}

func (m *Manual) drain() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.draining = false
			m.mu.Unlock()
			return
		}
		f := m.queue[0]
		m.queue[0] = nil
		m.queue = m.queue[1:]
		m.mu.Unlock()

		f()
	}
}

func (t *manualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true

	return true
}
