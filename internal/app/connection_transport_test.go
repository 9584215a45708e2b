package app

import (
	"testing"

	"github.com/irrigo/irrigo/internal/config"
	"github.com/irrigo/irrigo/internal/transport"
)

func TestNewTransportForConnection(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ConnectionConfig
		want    string
		wantErr bool
	}{
		{
			name: "websocket",
			cfg: config.ConnectionConfig{
				Connector: config.ConnectorWebSocket,
				Host:      "192.168.4.1",
			},
			want: "websocket",
		},
		{
			name: "serial",
			cfg: config.ConnectionConfig{
				Connector:  config.ConnectorSerial,
				SerialPort: "/dev/ttyUSB0",
				SerialBaud: 115200,
			},
			want: "serial",
		},
		{
			name:    "unknown",
			cfg:     config.ConnectionConfig{Connector: "bluetooth"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		tr, err := NewTransportForConnection(tc.cfg)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error, got nil", tc.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if tr.Name() != tc.want {
			t.Fatalf("%s: expected transport %q, got %q", tc.name, tc.want, tr.Name())
		}
	}
}

func TestConnectionTransportApplyKeepsWebSocketIdentity(t *testing.T) {
	connTr, err := NewConnectionTransport(config.ConnectionConfig{
		Connector: config.ConnectorWebSocket,
		Host:      "192.168.4.1",
		Port:      80,
		Path:      "/ws",
	})
	if err != nil {
		t.Fatalf("new connection transport: %v", err)
	}
	before := connTr.current().(*transport.WebSocketTransport)

	changed, err := connTr.Apply(config.ConnectionConfig{
		Connector: config.ConnectorWebSocket,
		Host:      "192.168.4.2",
		Port:      8080,
		Path:      "/ws",
	})
	if err != nil || !changed {
		t.Fatalf("expected change without error, got %v %v", changed, err)
	}
	after := connTr.current().(*transport.WebSocketTransport)
	if before != after {
		t.Fatalf("expected websocket transport to be retargeted in place")
	}
	if connTr.Target() != "ws://192.168.4.2:8080/ws" {
		t.Fatalf("unexpected target: %s", connTr.Target())
	}
}

func TestConnectionTransportApplySwitchesImplementation(t *testing.T) {
	connTr, err := NewConnectionTransport(config.ConnectionConfig{
		Connector: config.ConnectorWebSocket,
		Host:      "192.168.4.1",
	})
	if err != nil {
		t.Fatalf("new connection transport: %v", err)
	}

	next := config.ConnectionConfig{
		Connector:  config.ConnectorSerial,
		SerialPort: "COM3",
		SerialBaud: 115200,
	}
	if _, err := connTr.Apply(next); err != nil {
		t.Fatalf("apply serial config: %v", err)
	}
	if connTr.Name() != "serial" {
		t.Fatalf("expected switched transport serial, got %q", connTr.Name())
	}
	if connTr.Target() != "COM3@115200" {
		t.Fatalf("unexpected serial target: %q", connTr.Target())
	}
}

func TestConnectionTransportApplyUnchangedIsNoop(t *testing.T) {
	cfg := config.ConnectionConfig{Connector: config.ConnectorWebSocket, Host: "h"}
	connTr, err := NewConnectionTransport(cfg)
	if err != nil {
		t.Fatalf("new connection transport: %v", err)
	}
	changed, err := connTr.Apply(cfg)
	if err != nil || changed {
		t.Fatalf("expected no change, got %v %v", changed, err)
	}
}

func TestConnectionTransportApplyKeepsCurrentOnError(t *testing.T) {
	connTr, err := NewConnectionTransport(config.ConnectionConfig{
		Connector: config.ConnectorWebSocket,
		Host:      "192.168.4.1",
	})
	if err != nil {
		t.Fatalf("new connection transport: %v", err)
	}

	if _, err := connTr.Apply(config.ConnectionConfig{Connector: "usb"}); err == nil {
		t.Fatalf("expected apply error for unknown connector")
	}
	if connTr.Name() != "websocket" {
		t.Fatalf("expected transport to remain websocket after failed apply, got %q", connTr.Name())
	}
}

func TestConnectionTransportImplementsTransportInterface(t *testing.T) {
	var _ transport.Transport = (*SwitchableTransport)(nil)
}
