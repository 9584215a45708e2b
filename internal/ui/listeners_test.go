package ui

import (
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/irrigo/irrigo/internal/bus"
	"github.com/irrigo/irrigo/internal/connectors"
)

func TestStartUIEventListenersStopPreventsFurtherCallbacks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	messageBus := bus.New(logger)
	defer messageBus.Close()

	var connEvents atomic.Int64
	var parseEvents atomic.Int64
	stop := startUIEventListeners(
		messageBus,
		func(_ connectors.ConnectionStatus) {
			connEvents.Add(1)
		},
		func(_ connectors.ParseFailure) {
			parseEvents.Add(1)
		},
	)

	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{State: connectors.ConnectionStateConnected})
	messageBus.Publish(connectors.TopicParseError, connectors.ParseFailure{Raw: "{", Err: "unexpected end"})

	waitForCondition(t, func() bool {
		return connEvents.Load() == 1 && parseEvents.Load() == 1
	})

	stop()

	connBefore := connEvents.Load()
	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{State: connectors.ConnectionStateFailed})
	time.Sleep(100 * time.Millisecond)

	if connEvents.Load() != connBefore {
		t.Fatalf("expected no new connection callbacks after stop: before=%d after=%d", connBefore, connEvents.Load())
	}
}

func TestStartUIEventListenersNilBusReturnsNoopStop(t *testing.T) {
	stop := startUIEventListeners(nil, nil, nil)
	stop()
	stop()
}

func TestStartChangeListenerForwardsSignals(t *testing.T) {
	changes := make(chan struct{}, 1)
	var calls atomic.Int64
	stop := startChangeListener("test", changes, func() { calls.Add(1) })

	changes <- struct{}{}
	waitForCondition(t, func() bool { return calls.Load() == 1 })

	stop()
	stop()
	select {
	case changes <- struct{}{}:
	default:
	}
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != 1 {
		t.Fatalf("expected no calls after stop, got %d", calls.Load())
	}
}
