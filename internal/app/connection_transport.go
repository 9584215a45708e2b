package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/irrigo/irrigo/internal/config"
	"github.com/irrigo/irrigo/internal/transport"
)

// SwitchableTransport wraps the active connector and lets runtime swap it on
// config updates. The link keeps one transport for its lifetime, so switching
// only affects the next Open.
type SwitchableTransport struct {
	mu sync.RWMutex

	cfg       config.ConnectionConfig
	transport transport.Transport
}

func NewConnectionTransport(cfg config.ConnectionConfig) (*SwitchableTransport, error) {
	tr, err := newTransportForConnection(cfg)
	if err != nil {
		return nil, err
	}

	return &SwitchableTransport{
		cfg:       cfg,
		transport: tr,
	}, nil
}

// Apply retargets the current transport when the connector is unchanged, so a
// websocket keeps its connection id, and builds a new one otherwise. It reports
// whether the target changed.
func (t *SwitchableTransport) Apply(cfg config.ConnectionConfig) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cfg == t.cfg {
		return false, nil
	}
	if cfg.Connector == t.cfg.Connector {
		switch tr := t.transport.(type) {
		case *transport.WebSocketTransport:
			tr.SetEndpoint(cfg.Host, cfg.Port, cfg.Path)
			t.cfg = cfg

			return true, nil
		case *transport.SerialTransport:
			tr.SetConfig(cfg.SerialPort, cfg.SerialBaud)
			t.cfg = cfg

			return true, nil
		}
	}

	next, err := newTransportForConnection(cfg)
	if err != nil {
		return false, err
	}
	t.transport = next
	t.cfg = cfg

	return true, nil
}

func (t *SwitchableTransport) Name() string {
	tr := t.current()
	if tr == nil {
		return "unknown"
	}

	return tr.Name()
}

func (t *SwitchableTransport) Target() string {
	tr := t.current()
	if tr == nil {
		return ""
	}
	if target := tr.Target(); target != "" {
		return target
	}

	return ConnectionTarget(t.Config())
}

func (t *SwitchableTransport) Open(ctx context.Context, events transport.Events) transport.Socket {
	tr := t.current()
	if tr == nil {
		return failedSocket(events, errors.New("transport is not configured"))
	}

	return tr.Open(ctx, events)
}

func (t *SwitchableTransport) current() transport.Transport {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.transport
}

func (t *SwitchableTransport) Config() config.ConnectionConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.cfg
}

func NewTransportForConnection(cfg config.ConnectionConfig) (transport.Transport, error) {
	return newTransportForConnection(cfg)
}

func newTransportForConnection(cfg config.ConnectionConfig) (transport.Transport, error) {
	switch cfg.Connector {
	case config.ConnectorWebSocket:
		return transport.NewWebSocketTransport(cfg.Host, cfg.Port, cfg.Path), nil
	case config.ConnectorSerial:
		return transport.NewSerialTransport(cfg.SerialPort, cfg.SerialBaud), nil
	default:
		return nil, fmt.Errorf("unknown connector: %q", cfg.Connector)
	}
}

type deadSocket struct{}

func (deadSocket) Send([]byte) error { return transport.ErrSocketClosed }
func (deadSocket) Close() error      { return nil }

// failedSocket reports err asynchronously, as a real transport would.
func failedSocket(events transport.Events, err error) transport.Socket {
	if events.OnClose != nil {
		go events.OnClose(err)
	}

	return deadSocket{}
}
