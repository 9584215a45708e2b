// Package link owns the single logical connection to the controller. It wires
// the transport, heartbeat monitor, reconnect policy and message router into one
// state machine that runs on an eventloop.Scheduler.
package link

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/irrigo/irrigo/internal/backoff"
	"github.com/irrigo/irrigo/internal/eventloop"
	"github.com/irrigo/irrigo/internal/heartbeat"
	"github.com/irrigo/irrigo/internal/protocol"
	"github.com/irrigo/irrigo/internal/router"
	"github.com/irrigo/irrigo/internal/transport"
)

// Relay commands are throttled to DefaultRelayCommandRate per second with bursts
// of up to DefaultRelayCommandBurst.
const (
	DefaultRelayCommandRate  = 4
	DefaultRelayCommandBurst = 2
)

// Config tunes heartbeat and reconnect timing along with relay throttling.
type Config struct {
	Heartbeat heartbeat.Config
	Backoff   backoff.Policy
	// RelayCommandRate limits relay commands per second. Zero disables the limit.
	RelayCommandRate  float64
	RelayCommandBurst int
}

// DefaultConfig returns the tuning used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Heartbeat:         heartbeat.DefaultConfig(),
		Backoff:           backoff.Default(),
		RelayCommandRate:  DefaultRelayCommandRate,
		RelayCommandBurst: DefaultRelayCommandBurst,
	}
}

// Manager is the connection state machine. All methods must be called from the
// scheduler's loop; transport callbacks are posted back onto it and every one
// of them, like every timer, carries the epoch it was created for.
type Manager struct {
	sched     eventloop.Scheduler
	transport transport.Transport
	policy    backoff.Policy
	logger    *slog.Logger
	router    *router.Router
	monitor   *heartbeat.Monitor
	limiter   *rate.Limiter

	state        State
	attempt      int
	epoch        uint64
	socket       transport.Socket
	cancelDial   context.CancelFunc
	retryTimer   eventloop.Timer
	retryIn      time.Duration
	deferred     bool
	resumeOnOpen bool
	lastErr      error

	foreground func() bool
	observers  []func(Status)
}

func New(sched eventloop.Scheduler, tr transport.Transport, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default().With("component", "link")
	}

	m := &Manager{
		sched:     sched,
		transport: tr,
		policy:    cfg.Backoff,
		logger:    logger,
		router:    router.New(logger.With("subsystem", "router")),
	}
	m.monitor = heartbeat.New(sched, cfg.Heartbeat, m.sendFrame, m.handleStale, logger.With("subsystem", "heartbeat"))
	m.router.SetHeartbeat(func(frame protocol.Frame) {
		m.monitor.HandleFrame(frame.Kind)
	})
	if cfg.RelayCommandRate > 0 {
		burst := cfg.RelayCommandBurst
		if burst <= 0 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(cfg.RelayCommandRate), burst)
	}

	return m
}

// Handle registers the application consumer for one inbound frame kind.
func (m *Manager) Handle(kind protocol.Kind, h router.Handler) {
	m.router.Handle(kind, h)
}

// OnParseError observes inbound payloads that were dropped as malformed.
func (m *Manager) OnParseError(h func(*protocol.ParseError)) {
	m.router.OnParseError(h)
}

// Observe registers fn for every status transition.
func (m *Manager) Observe(fn func(Status)) {
	if fn != nil {
		m.observers = append(m.observers, fn)
	}
}

// SetForeground installs the visibility gate consulted when a backoff timer fires.
func (m *Manager) SetForeground(fn func() bool) {
	m.foreground = fn
}

func (m *Manager) State() State {
	return m.state
}

func (m *Manager) Attempt() int {
	return m.attempt
}

// Deferred reports whether a backoff reattempt is waiting for the foreground.
func (m *Manager) Deferred() bool {
	return m.deferred
}

func (m *Manager) Status() Status {
	return Status{
		State:      m.state,
		Attempt:    m.attempt,
		Epoch:      m.epoch,
		RetryIn:    m.retryIn,
		Deferred:   m.deferred,
		Err:        m.lastErr,
		LastPongAt: m.monitor.State().LastPongAt,
		Transport:  m.transport.Name(),
		Target:     m.transport.Target(),
		At:         m.sched.Now(),
	}
}

// Connect opens the link. It is a no-op while connecting or open. From Idle,
// Closing or Failed the attempt counter starts over; from Backoff the pending
// reattempt is taken immediately.
func (m *Manager) Connect() {
	switch m.state {
	case StateConnecting, StateOpen:
		m.logger.Debug("connect skipped", "state", m.state)
		return
	case StateIdle, StateClosing, StateFailed:
		m.attempt = 0
	}
	m.open(false)
}

// Suspend closes an open or connecting link without scheduling a reattempt.
func (m *Manager) Suspend() {
	if m.state != StateOpen && m.state != StateConnecting {
		return
	}
	if m.state == StateOpen && m.socket != nil {
		if err := m.socket.Send(protocol.Pause()); err != nil {
			m.logger.Debug("pause notice failed", "error", err)
		}
	}
	m.teardown()
	m.lastErr = nil
	m.setState(StateSuspended)
}

// Resume reconnects a suspended link immediately, bypassing backoff.
func (m *Manager) Resume() {
	if m.state != StateSuspended {
		return
	}
	m.open(true)
}

// Close shuts the link down on request. An open or connecting link passes
// through Closing until the transport confirms.
func (m *Manager) Close() {
	switch m.state {
	case StateIdle, StateClosing:
		return
	case StateOpen, StateConnecting:
		m.monitor.Stop()
		m.stopRetry()
		if m.cancelDial != nil {
			m.cancelDial()
			m.cancelDial = nil
		}
		socket := m.socket
		m.socket = nil
		m.lastErr = nil
		m.setState(StateClosing)
		if socket != nil {
			if err := socket.Close(); err != nil {
				m.logger.Debug("close failed", "error", err)
			}
		}
	default:
		m.teardown()
		m.lastErr = nil
		m.setState(StateIdle)
	}
}

// Send writes payload on the open link. While the link is not open the payload
// is dropped and ErrNotOpen returned so callers can revert optimistic state.
func (m *Manager) Send(payload []byte) error {
	if m.state != StateOpen || m.socket == nil {
		m.logger.Debug("send dropped", "state", m.state, "len", len(payload))
		return ErrNotOpen
	}
	if err := m.socket.Send(payload); err != nil {
		cause := fmt.Errorf("%w: send: %w", ErrTransport, err)
		m.fail(cause)

		return cause
	}

	return nil
}

// SendRelayCommand asks the controller to switch relay index on or off.
func (m *Manager) SendRelayCommand(index int, active bool) error {
	if m.state != StateOpen {
		return ErrNotOpen
	}
	if m.limiter != nil && !m.limiter.AllowN(m.sched.Now(), 1) {
		m.logger.Debug("relay command throttled", "relay", index)
		return ErrRateLimited
	}

	return m.Send(protocol.RelayCommand(index, active))
}

func (m *Manager) open(resume bool) {
	m.teardown()
	m.epoch++
	epoch := m.epoch
	m.resumeOnOpen = resume
	m.lastErr = nil

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel
	m.setState(StateConnecting)
	m.logger.Info("connecting", "transport", m.transport.Name(), "target", m.transport.Target(), "attempt", m.attempt, "epoch", epoch)

	m.socket = m.transport.Open(ctx, transport.Events{
		OnOpen: func() {
			m.sched.Post(func() {
				if epoch == m.epoch && m.state == StateConnecting {
					m.handleOpen()
				}
			})
		},
		OnMessage: func(payload []byte) {
			m.sched.Post(func() {
				if epoch == m.epoch && m.state == StateOpen {
					_ = m.router.Route(payload)
				}
			})
		},
		OnClose: func(err error) {
			m.sched.Post(func() {
				if epoch == m.epoch {
					m.handleClose(err)
				}
			})
		},
	})
}

func (m *Manager) handleOpen() {
	m.attempt = 0
	m.retryIn = 0
	m.setState(StateOpen)
	m.monitor.Start()
	m.logger.Info("connected", "target", m.transport.Target(), "epoch", m.epoch)

	if m.resumeOnOpen {
		m.resumeOnOpen = false
		if err := m.Send(protocol.Resume()); err != nil {
			m.logger.Debug("resume notice failed", "error", err)
		}
	}
}

func (m *Manager) handleClose(err error) {
	switch m.state {
	case StateClosing:
		m.teardown()
		m.setState(StateIdle)
		m.logger.Info("closed")
	case StateConnecting, StateOpen:
		if err == nil {
			err = fmt.Errorf("connection closed by peer")
		}
		m.fail(fmt.Errorf("%w: %w", ErrTransport, err))
	}
}

func (m *Manager) handleStale() {
	if m.state != StateOpen {
		return
	}
	m.fail(ErrLivenessTimeout)
}

// fail drops the current connection and either schedules a reattempt or moves
// to Failed when the policy gives up.
func (m *Manager) fail(cause error) {
	m.teardown()
	m.lastErr = cause

	if !m.policy.ShouldRetry(m.attempt) {
		m.lastErr = fmt.Errorf("%w: %w", ErrExhaustedRetries, cause)
		m.retryIn = 0
		m.setState(StateFailed)
		m.logger.Warn("connection lost", "attempts", m.attempt, "error", cause)

		return
	}

	delay := m.policy.NextDelay(m.attempt)
	m.attempt++
	m.retryIn = delay
	epoch := m.epoch
	m.retryTimer = m.sched.AfterFunc(delay, func() {
		if epoch != m.epoch || m.state != StateBackoff {
			return
		}
		m.retryTimer = nil
		m.retry()
	})
	m.setState(StateBackoff)
	m.logger.Warn("connection dropped", "retry_in", delay, "attempt", m.attempt, "error", cause)
}

func (m *Manager) retry() {
	if m.foreground != nil && !m.foreground() {
		m.deferred = true
		m.logger.Debug("reattempt deferred until foreground")
		m.notify()

		return
	}
	m.open(false)
}

// teardown invalidates every callback and timer of the current epoch.
func (m *Manager) teardown() {
	m.monitor.Stop()
	m.stopRetry()
	m.deferred = false
	m.epoch++
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if m.socket != nil {
		if err := m.socket.Close(); err != nil {
			m.logger.Debug("socket close failed", "error", err)
		}
		m.socket = nil
	}
}

func (m *Manager) stopRetry() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

// sendFrame is the heartbeat's send primitive.
func (m *Manager) sendFrame(payload []byte) error {
	return m.Send(payload)
}

func (m *Manager) setState(s State) {
	prev := m.state
	m.state = s
	if prev != s {
		m.logger.Debug("state changed", "from", prev, "to", s)
	}
	m.notify()
}

func (m *Manager) notify() {
	if len(m.observers) == 0 {
		return
	}
	status := m.Status()
	for _, fn := range m.observers {
		fn(status)
	}
}
