package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/irrigo/irrigo/internal/bus"
	"github.com/irrigo/irrigo/internal/config"
	"github.com/irrigo/irrigo/internal/connectors"
	"github.com/irrigo/irrigo/internal/notifications"
)

const (
	notificationTitleConnectionLost     = "Controller disconnected"
	notificationTitleConnectionRestored = "Controller reconnected"
	notificationTitleLowWater           = "Water level low"
	notificationTitleWaterRefilled      = "Water level restored"
)

// NotificationService listens to bus events and emits user-facing notifications.
type NotificationService struct {
	bus           bus.MessageBus
	currentConfig func() config.AppConfig
	isForeground  func() bool
	sender        notifications.Sender
	logger        *slog.Logger

	connStatusMu     sync.Mutex
	lastConnState    connectors.ConnectionState
	lastConnStateSet bool
	failed           bool
}

func NewNotificationService(
	messageBus bus.MessageBus,
	currentConfig func() config.AppConfig,
	isForeground func() bool,
	sender notifications.Sender,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default().With("component", "app.notifications")
	}

	return &NotificationService{
		bus:           messageBus,
		currentConfig: currentConfig,
		isForeground:  isForeground,
		sender:        sender,
		logger:        logger,
	}
}

func (s *NotificationService) Start(ctx context.Context) {
	if s == nil || s.bus == nil || s.sender == nil {
		return
	}

	connSub := s.bus.Subscribe(connectors.TopicConnStatus)
	waterSub := s.bus.Subscribe(connectors.TopicLowWater)

	go func() {
		defer s.bus.Unsubscribe(connSub)
		defer s.bus.Unsubscribe(waterSub)

		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-connSub:
				if !ok {
					return
				}
				status, ok := raw.(connectors.ConnectionStatus)
				if !ok {
					continue
				}
				s.handleConnectionStatus(status)
			case raw, ok := <-waterSub:
				if !ok {
					return
				}
				event, ok := raw.(connectors.LowWater)
				if !ok {
					continue
				}
				s.handleLowWater(event)
			}
		}
	}()
}

// handleConnectionStatus notifies when the link gives up and when a failed
// link comes back. Backoff cycles are shown by the status indicator only.
func (s *NotificationService) handleConnectionStatus(status connectors.ConnectionStatus) {
	if status.State == "" {
		return
	}

	s.connStatusMu.Lock()
	if s.lastConnStateSet && s.lastConnState == status.State {
		s.connStatusMu.Unlock()

		return
	}
	s.lastConnState = status.State
	s.lastConnStateSet = true
	wasFailed := s.failed
	switch status.State {
	case connectors.ConnectionStateFailed:
		s.failed = true
	case connectors.ConnectionStateConnected:
		s.failed = false
	}
	s.connStatusMu.Unlock()

	prefs := s.notificationPrefs()
	if !s.shouldNotify(prefs, prefs.Events.ConnectionLost) {
		return
	}

	details := strings.TrimSpace(status.Target)
	if details == "" {
		details = "No connection details"
	}
	switch {
	case status.State == connectors.ConnectionStateFailed:
		if errText := strings.TrimSpace(status.Err); errText != "" {
			details = fmt.Sprintf("%s (error: %s)", details, errText)
		}
		s.send(notifications.Payload{Title: notificationTitleConnectionLost, Content: details})
	case status.State == connectors.ConnectionStateConnected && wasFailed:
		s.send(notifications.Payload{Title: notificationTitleConnectionRestored, Content: details})
	}
}

func (s *NotificationService) handleLowWater(event connectors.LowWater) {
	prefs := s.notificationPrefs()
	if !s.shouldNotify(prefs, prefs.Events.LowWater) {
		return
	}
	if event.Low {
		s.send(notifications.Payload{
			Title:   notificationTitleLowWater,
			Content: "The reservoir float switch reports low water. Irrigation is paused until it is refilled.",
		})

		return
	}
	s.send(notifications.Payload{
		Title:   notificationTitleWaterRefilled,
		Content: "The reservoir has been refilled.",
	})
}

func (s *NotificationService) shouldNotify(prefs config.NotificationConfig, kindEnabled bool) bool {
	if !kindEnabled {
		return false
	}
	if prefs.NotifyWhenFocused {
		return true
	}
	if s.isForeground == nil {
		return true
	}

	return !s.isForeground()
}

func (s *NotificationService) notificationPrefs() config.NotificationConfig {
	cfg := config.Default()
	if s.currentConfig != nil {
		cfg = s.currentConfig()
		cfg.FillMissingDefaults()
	}

	return cfg.UI.Notifications
}

func (s *NotificationService) send(notification notifications.Payload) {
	payload, ok := notification.Normalized()
	if !ok {
		return
	}
	s.logger.Debug("sending notification", "title", payload.Title)
	s.sender.Send(payload)
}
