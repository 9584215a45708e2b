package ui

import (
	"testing"
	"time"

	fynetest "fyne.io/fyne/v2/test"
	"fyne.io/fyne/v2/widget"

	irrigoapp "github.com/irrigo/irrigo/internal/app"
	"github.com/irrigo/irrigo/internal/connectors"
)

func TestFormatWindowTitle(t *testing.T) {
	got := formatWindowTitle(connectors.ConnectionStatus{
		State:         connectors.ConnectionStateConnected,
		TransportName: "websocket",
	})
	want := "Irrigo " + irrigoapp.BuildVersion() + " - WebSocket connected"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestFormatConnStatus(t *testing.T) {
	tests := []struct {
		name   string
		status connectors.ConnectionStatus
		want   string
	}{
		{
			name: "connected with target",
			status: connectors.ConnectionStatus{
				State:         connectors.ConnectionStateConnected,
				TransportName: "serial",
				Target:        "/dev/ttyUSB0@115200",
			},
			want: "Serial connected (/dev/ttyUSB0@115200)",
		},
		{
			name: "backoff with countdown",
			status: connectors.ConnectionStatus{
				State:         connectors.ConnectionStateBackoff,
				TransportName: "websocket",
				Attempt:       2,
				RetryIn:       9600 * time.Millisecond,
				Err:           "liveness timeout",
			},
			want: "WebSocket backoff, retry 2 in 10s (liveness timeout)",
		},
		{
			name: "deferred backoff",
			status: connectors.ConnectionStatus{
				State:         connectors.ConnectionStateBackoff,
				TransportName: "websocket",
				Attempt:       1,
				Deferred:      true,
			},
			want: "WebSocket backoff, reconnects when the window is shown",
		},
		{
			name: "failed after budget",
			status: connectors.ConnectionStatus{
				State:   connectors.ConnectionStateFailed,
				Attempt: 5,
			},
			want: "failed, gave up after 5 attempts",
		},
	}

	for _, tc := range tests {
		if got := formatConnStatus(tc.status); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestTransportDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "websocket", want: "WebSocket"},
		{in: "serial", want: "Serial"},
		{in: "custom", want: "custom"},
		{in: " ", want: ""},
	}

	for _, tc := range tests {
		if got := transportDisplayName(tc.in); got != tc.want {
			t.Fatalf("%q: expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestSidebarStatusIcon(t *testing.T) {
	tests := map[connectors.ConnectionState]statusIcon{
		connectors.ConnectionStateConnected:  statusIconConnected,
		connectors.ConnectionStateConnecting: statusIconWorking,
		connectors.ConnectionStateBackoff:    statusIconWorking,
		connectors.ConnectionStateSuspended:  statusIconPaused,
		connectors.ConnectionStateFailed:     statusIconFailed,
		connectors.ConnectionStateIdle:       statusIconIdle,
	}
	for state, want := range tests {
		if got := sidebarStatusIcon(connectors.ConnectionStatus{State: state}); got != want {
			t.Fatalf("%s: expected icon %d, got %d", state, want, got)
		}
	}
}

func TestConnectionStatusPresenterShowsReconnectOnlyWhenStopped(t *testing.T) {
	app := fynetest.NewApp()
	t.Cleanup(app.Quit)

	reconnects := 0
	label := widget.NewLabel("")
	presenter := newConnectionStatusPresenter(nil, label, connectors.ConnectionStatus{
		State: connectors.ConnectionStateConnected,
	}, func() { reconnects++ })

	if presenter.ReconnectButton().Visible() {
		t.Fatalf("expected reconnect to be hidden while connected")
	}

	presenter.Set(connectors.ConnectionStatus{State: connectors.ConnectionStateFailed, Attempt: 5})
	if !presenter.ReconnectButton().Visible() {
		t.Fatalf("expected reconnect to be shown after failure")
	}
	if label.Text != "failed, gave up after 5 attempts" {
		t.Fatalf("unexpected status label: %q", label.Text)
	}

	fynetest.Tap(presenter.ReconnectButton())
	if reconnects != 1 {
		t.Fatalf("expected one reconnect, got %d", reconnects)
	}
	if presenter.CurrentStatus().State != connectors.ConnectionStateFailed {
		t.Fatalf("expected current status to be failed")
	}
}
