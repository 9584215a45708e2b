// Package heartbeat implements the application-level ping/pong liveness check.
package heartbeat

import (
	"log/slog"
	"time"

	"github.com/irrigo/irrigo/internal/eventloop"
	"github.com/irrigo/irrigo/internal/protocol"
)

// A ping goes out every DefaultInterval and its pong is due within DefaultTimeout.
const (
	DefaultInterval = 30 * time.Second
	DefaultTimeout  = 5 * time.Second
)

// Config sets the ping period and how long a pong may take.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultConfig returns a Config built from DefaultInterval and DefaultTimeout.
func DefaultConfig() Config {
	return Config{Interval: DefaultInterval, Timeout: DefaultTimeout}
}

// State is the monitor's view of the current heartbeat round.
type State struct {
	OutstandingPing bool
	PingSentAt      time.Time
	PongDeadline    time.Time
	LastPongAt      time.Time
}

// Monitor sends a ping every Interval and reports a stale link when the matching
// pong does not arrive within Timeout. It never closes the link itself.
//
// Monitor must only be used from the scheduler's loop.
type Monitor struct {
	sched   eventloop.Scheduler
	cfg     Config
	send    func(payload []byte) error
	onStale func()
	logger  *slog.Logger

	gen      uint64
	running  bool
	ticker   eventloop.Timer
	deadline eventloop.Timer
	state    State
}

func New(sched eventloop.Scheduler, cfg Config, send func([]byte) error, onStale func(), logger *slog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default().With("component", "heartbeat")
	}

	return &Monitor{
		sched:   sched,
		cfg:     cfg,
		send:    send,
		onStale: onStale,
		logger:  logger,
	}
}

// Start begins a fresh heartbeat cycle. Any timers of a previous cycle are
// cancelled and invalidated.
func (m *Monitor) Start() {
	m.stopTimers()
	m.gen++
	m.running = true
	m.state = State{LastPongAt: m.state.LastPongAt}
	m.scheduleTick(m.gen)
	m.logger.Debug("heartbeat started", "interval", m.cfg.Interval, "timeout", m.cfg.Timeout)
}

// Stop cancels all timers. Late callbacks from the stopped cycle are ignored.
func (m *Monitor) Stop() {
	if !m.running {
		return
	}
	m.stopTimers()
	m.gen++
	m.running = false
	m.state.OutstandingPing = false
	m.logger.Debug("heartbeat stopped")
}

func (m *Monitor) Running() bool {
	return m.running
}

func (m *Monitor) State() State {
	return m.state
}

// HandleFrame consumes heartbeat frames. A pong settles the outstanding ping; a
// peer ping is answered immediately. It reports whether the frame was consumed.
func (m *Monitor) HandleFrame(kind protocol.Kind) bool {
	switch kind {
	case protocol.KindPong:
		m.state.LastPongAt = m.sched.Now()
		if m.state.OutstandingPing {
			m.state.OutstandingPing = false
			m.state.PongDeadline = time.Time{}
			if m.deadline != nil {
				m.deadline.Stop()
				m.deadline = nil
			}
			m.logger.Debug("pong received", "rtt", m.state.LastPongAt.Sub(m.state.PingSentAt))
		}

		return true
	case protocol.KindPing:
		if err := m.send(protocol.Pong()); err != nil {
			m.logger.Debug("pong reply failed", "error", err)
		}

		return true
	default:
		return false
	}
}

func (m *Monitor) scheduleTick(gen uint64) {
	m.ticker = m.sched.AfterFunc(m.cfg.Interval, func() { m.tick(gen) })
}

func (m *Monitor) tick(gen uint64) {
	if gen != m.gen || !m.running {
		return
	}

	// A new round supersedes any deadline left from the previous one.
	if m.deadline != nil {
		m.deadline.Stop()
		m.deadline = nil
	}

	now := m.sched.Now()
	m.state.OutstandingPing = true
	m.state.PingSentAt = now
	m.state.PongDeadline = now.Add(m.cfg.Timeout)
	m.deadline = m.sched.AfterFunc(m.cfg.Timeout, func() { m.expire(gen) })
	if err := m.send(protocol.Ping()); err != nil {
		m.logger.Debug("ping send failed", "error", err)
	}
	if gen != m.gen || !m.running {
		// The send path tore the link down.
		return
	}

	m.scheduleTick(gen)
}

func (m *Monitor) expire(gen uint64) {
	if gen != m.gen || !m.running || !m.state.OutstandingPing {
		return
	}
	if m.sched.Now().Before(m.state.PongDeadline) {
		return
	}

	m.state.OutstandingPing = false
	m.deadline = nil
	m.logger.Warn("pong not received", "ping_sent_at", m.state.PingSentAt, "timeout", m.cfg.Timeout)
	if m.onStale != nil {
		m.onStale()
	}
}

func (m *Monitor) stopTimers() {
	if m.ticker != nil {
		m.ticker.Stop()
		m.ticker = nil
	}
	if m.deadline != nil {
		m.deadline.Stop()
		m.deadline = nil
	}
}
