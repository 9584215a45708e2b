package app

import (
	"log/slog"
	"time"

	"github.com/irrigo/irrigo/internal/backoff"
	"github.com/irrigo/irrigo/internal/bus"
	"github.com/irrigo/irrigo/internal/config"
	"github.com/irrigo/irrigo/internal/connectors"
	"github.com/irrigo/irrigo/internal/countdown"
	"github.com/irrigo/irrigo/internal/eventloop"
	"github.com/irrigo/irrigo/internal/heartbeat"
	"github.com/irrigo/irrigo/internal/link"
	"github.com/irrigo/irrigo/internal/protocol"
	"github.com/irrigo/irrigo/internal/transport"
	"github.com/irrigo/irrigo/internal/visibility"
)

// LinkService owns the loop-affine link components and bridges them to the bus.
// Its exported methods are safe from any goroutine: each one posts onto the
// scheduler.
type LinkService struct {
	sched  eventloop.Scheduler
	bus    bus.MessageBus
	logger *slog.Logger

	manager     *link.Manager
	coordinator *visibility.Coordinator
	countdown   *countdown.Synchronizer
	deviceLog   func(protocol.LogEntry)

	// loop-only
	lowWater      bool
	lowWaterKnown bool
}

// LinkConfigFromApp maps persisted settings onto the link's tuning.
func LinkConfigFromApp(cfg config.LinkConfig) link.Config {
	return link.Config{
		Heartbeat: heartbeat.Config{
			Interval: cfg.HeartbeatInterval.Std(),
			Timeout:  cfg.PongTimeout.Std(),
		},
		Backoff: backoff.Policy{
			Base:        cfg.BackoffBase.Std(),
			Max:         cfg.BackoffMax.Std(),
			MaxAttempts: cfg.MaxAttempts,
		},
		RelayCommandRate:  cfg.RelayCommandRate,
		RelayCommandBurst: link.DefaultRelayCommandBurst,
	}
}

// NewLinkService wires the link. deviceLog, when set, mirrors controller log
// lines into the app log.
func NewLinkService(
	sched eventloop.Scheduler,
	tr transport.Transport,
	cfg config.LinkConfig,
	messageBus bus.MessageBus,
	deviceLog func(protocol.LogEntry),
	logger *slog.Logger,
) *LinkService {
	if logger == nil {
		logger = slog.Default().With("component", "app.link")
	}

	s := &LinkService{
		sched:     sched,
		bus:       messageBus,
		logger:    logger,
		deviceLog: deviceLog,
	}
	s.manager = link.New(sched, tr, LinkConfigFromApp(cfg), logger.With("subsystem", "manager"))
	s.coordinator = visibility.New(s.manager, logger.With("subsystem", "visibility"))
	s.countdown = countdown.New(sched, busDisplay{bus: messageBus}, logger.With("subsystem", "countdown"))

	s.manager.SetForeground(s.coordinator.Foreground)
	s.manager.Observe(s.publishStatus)
	s.manager.OnParseError(s.publishParseError)
	s.manager.Handle(protocol.KindLog, s.handleLog)
	s.manager.Handle(protocol.KindRelayUpdate, s.handleRelayUpdate)
	s.manager.Handle(protocol.KindDashboard, s.handleDashboard)

	return s
}

// Start connects the link. While the window is in the background the first
// connection waits for it to come to the foreground.
func (s *LinkService) Start() {
	s.sched.Post(func() {
		if !s.coordinator.Foreground() {
			s.logger.Info("link start deferred until foreground")
			return
		}
		s.manager.Connect()
	})
}

func (s *LinkService) Stop() {
	s.sched.Post(func() {
		s.manager.Close()
		s.countdown.Reset()
	})
}

// Reconnect drops the current connection, if any, and opens a fresh one with
// the attempt counter reset.
func (s *LinkService) Reconnect() {
	s.sched.Post(func() {
		s.manager.Close()
		s.manager.Connect()
	})
}

// SetForeground feeds window visibility into the coordinator.
func (s *LinkService) SetForeground(foreground bool) {
	s.sched.Post(func() {
		if foreground {
			s.coordinator.OnForeground()
			return
		}
		s.coordinator.OnBackground()
	})
}

// SetRelay requests a relay toggle. The outcome is published as a
// RelayCommandResult; a dropped command is reported as not accepted.
func (s *LinkService) SetRelay(index int, active bool) {
	s.sched.Post(func() {
		result := connectors.RelayCommandResult{Index: index, Active: active, Accepted: true}
		if err := s.manager.SendRelayCommand(index, active); err != nil {
			s.logger.Info("relay command not sent", "relay", index, "active", active, "error", err)
			result.Accepted = false
			result.Err = err.Error()
		}
		s.bus.Publish(connectors.TopicRelayCommandResult, result)
	})
}

func (s *LinkService) publishStatus(status link.Status) {
	s.bus.Publish(connectors.TopicConnStatus, ConnectionStatusFromLink(status))
}

func (s *LinkService) publishParseError(err *protocol.ParseError) {
	s.bus.Publish(connectors.TopicParseError, connectors.ParseFailure{
		Raw:       string(err.Raw),
		Err:       err.Err.Error(),
		Timestamp: s.sched.Now(),
	})
}

func (s *LinkService) handleLog(frame protocol.Frame) {
	if frame.Log == nil {
		return
	}
	if s.deviceLog != nil {
		s.deviceLog(*frame.Log)
	}
	s.bus.Publish(connectors.TopicDeviceLog, connectors.DeviceLog{Entry: *frame.Log, ReceivedAt: s.sched.Now()})
}

func (s *LinkService) handleRelayUpdate(frame protocol.Frame) {
	if frame.Relay == nil {
		return
	}
	s.countdown.OnRelayUpdate(*frame.Relay)
	s.bus.Publish(connectors.TopicRelayUpdate, *frame.Relay)
}

func (s *LinkService) handleDashboard(frame protocol.Frame) {
	if frame.Dashboard == nil {
		return
	}
	d := *frame.Dashboard
	now := s.sched.Now()
	s.bus.Publish(connectors.TopicDashboard, connectors.DashboardUpdate{Dashboard: d, ReceivedAt: now})
	for _, update := range d.RelayUpdates() {
		s.countdown.OnRelayUpdate(update)
	}
	s.trackLowWater(d.LowWater(), now)
}

// trackLowWater publishes changes of the reservoir alarm. The first reading
// only sets the baseline.
func (s *LinkService) trackLowWater(low bool, at time.Time) {
	if !s.lowWaterKnown {
		s.lowWater = low
		s.lowWaterKnown = true

		return
	}
	if s.lowWater == low {
		return
	}
	s.lowWater = low
	s.bus.Publish(connectors.TopicLowWater, connectors.LowWater{Low: low, Timestamp: at})
}

type busDisplay struct {
	bus bus.MessageBus
}

func (d busDisplay) Show(index int, seconds int) {
	d.bus.Publish(connectors.TopicCountdown, connectors.CountdownTick{Index: index, Seconds: seconds})
}

func (d busDisplay) Clear(index int) {
	d.bus.Publish(connectors.TopicCountdown, connectors.CountdownTick{Index: index, Cleared: true})
}
