package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/irrigo/irrigo/internal/bus"
	"github.com/irrigo/irrigo/internal/config"
	"github.com/irrigo/irrigo/internal/connectors"
	"github.com/irrigo/irrigo/internal/notifications"
)

func startNotificationService(t *testing.T, cfg func() config.AppConfig, foreground func() bool) (*bus.PubSubBus, *collectingNotificationSender) {
	t.Helper()

	messageBus := newTestMessageBus(t)
	sender := newCollectingNotificationSender()
	service := NewNotificationService(messageBus, cfg, foreground, sender, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	service.Start(ctx)

	return messageBus, sender
}

func TestNotificationServiceConnectionFailedAndRestored(t *testing.T) {
	cfg := config.Default()
	messageBus, sender := startNotificationService(t, func() config.AppConfig { return cfg }, func() bool { return false })

	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{State: connectors.ConnectionStateConnected, Target: "ws://192.168.4.1:80/ws"})
	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{State: connectors.ConnectionStateBackoff, Target: "ws://192.168.4.1:80/ws"})
	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{
		State:  connectors.ConnectionStateFailed,
		Target: "ws://192.168.4.1:80/ws",
		Err:    "reconnect attempts exhausted",
	})

	got := sender.waitForCount(t, 1)
	if got[0].Title != notificationTitleConnectionLost {
		t.Fatalf("expected connection lost title, got %q", got[0].Title)
	}
	if got[0].Content != "ws://192.168.4.1:80/ws (error: reconnect attempts exhausted)" {
		t.Fatalf("unexpected content: %q", got[0].Content)
	}

	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{State: connectors.ConnectionStateConnecting, Target: "ws://192.168.4.1:80/ws"})
	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{State: connectors.ConnectionStateConnected, Target: "ws://192.168.4.1:80/ws"})
	got = sender.waitForCount(t, 2)
	if got[1].Title != notificationTitleConnectionRestored {
		t.Fatalf("expected restored title, got %q", got[1].Title)
	}
}

func TestNotificationServiceIgnoresRoutineReconnects(t *testing.T) {
	cfg := config.Default()
	messageBus, sender := startNotificationService(t, func() config.AppConfig { return cfg }, func() bool { return false })

	for _, state := range []connectors.ConnectionState{
		connectors.ConnectionStateConnecting,
		connectors.ConnectionStateConnected,
		connectors.ConnectionStateBackoff,
		connectors.ConnectionStateConnecting,
		connectors.ConnectionStateConnected,
	} {
		messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{State: state})
	}
	sender.assertCount(t, 0)
}

func TestNotificationServiceLowWater(t *testing.T) {
	cfg := config.Default()
	messageBus, sender := startNotificationService(t, func() config.AppConfig { return cfg }, func() bool { return false })

	messageBus.Publish(connectors.TopicLowWater, connectors.LowWater{Low: true, Timestamp: time.Now()})
	got := sender.waitForCount(t, 1)
	if got[0].Title != notificationTitleLowWater {
		t.Fatalf("expected low water title, got %q", got[0].Title)
	}

	messageBus.Publish(connectors.TopicLowWater, connectors.LowWater{Low: false, Timestamp: time.Now()})
	got = sender.waitForCount(t, 2)
	if got[1].Title != notificationTitleWaterRefilled {
		t.Fatalf("expected refilled title, got %q", got[1].Title)
	}
}

func TestNotificationServiceRespectsFocusAndToggles(t *testing.T) {
	var cfgMu sync.Mutex
	cfg := config.Default()
	foreground := true
	messageBus, sender := startNotificationService(t, func() config.AppConfig {
		cfgMu.Lock()
		defer cfgMu.Unlock()

		return cfg
	}, func() bool {
		cfgMu.Lock()
		defer cfgMu.Unlock()

		return foreground
	})

	messageBus.Publish(connectors.TopicLowWater, connectors.LowWater{Low: true})
	sender.assertCount(t, 0)

	cfgMu.Lock()
	cfg.UI.Notifications.NotifyWhenFocused = true
	cfg.UI.Notifications.Events.LowWater = false
	cfgMu.Unlock()
	messageBus.Publish(connectors.TopicLowWater, connectors.LowWater{Low: true})
	sender.assertCount(t, 0)

	cfgMu.Lock()
	cfg.UI.Notifications.Events.LowWater = true
	cfgMu.Unlock()
	messageBus.Publish(connectors.TopicLowWater, connectors.LowWater{Low: true})
	sender.waitForCount(t, 1)
}

func newTestMessageBus(t *testing.T) *bus.PubSubBus {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	messageBus := bus.New(logger)
	t.Cleanup(func() {
		messageBus.Close()
	})

	return messageBus
}

type collectingNotificationSender struct {
	mu            sync.Mutex
	notifications []notifications.Payload
	changes       chan struct{}
}

func newCollectingNotificationSender() *collectingNotificationSender {
	return &collectingNotificationSender{
		changes: make(chan struct{}, 1),
	}
}

func (s *collectingNotificationSender) Send(notification notifications.Payload) {
	s.mu.Lock()
	s.notifications = append(s.notifications, notification)
	s.mu.Unlock()

	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *collectingNotificationSender) snapshot() []notifications.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]notifications.Payload, len(s.notifications))
	copy(out, s.notifications)

	return out
}

func (s *collectingNotificationSender) waitForCount(t *testing.T, expected int) []notifications.Payload {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		current := s.snapshot()
		if len(current) >= expected {
			return current
		}
		select {
		case <-s.changes:
		case <-time.After(10 * time.Millisecond):
		}
	}

	t.Fatalf("timed out waiting for %d notifications", expected)

	return nil
}

func (s *collectingNotificationSender) assertCount(t *testing.T, expected int) {
	t.Helper()

	time.Sleep(100 * time.Millisecond)
	current := s.snapshot()
	if len(current) != expected {
		t.Fatalf("expected %d notifications, got %d", expected, len(current))
	}
}
