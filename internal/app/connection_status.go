package app

import (
	"strings"

	"github.com/irrigo/irrigo/internal/config"
	"github.com/irrigo/irrigo/internal/connectors"
	"github.com/irrigo/irrigo/internal/link"
)

func TransportNameFromConnector(connector config.ConnectorType) string {
	switch connector {
	case config.ConnectorWebSocket:
		return "websocket"
	case config.ConnectorSerial:
		return "serial"
	default:
		if value := strings.TrimSpace(string(connector)); value != "" {
			return value
		}

		return "unknown"
	}
}

func ConnectionTarget(cfg config.ConnectionConfig) string {
	switch cfg.Connector {
	case config.ConnectorWebSocket:
		return strings.TrimSpace(cfg.Host)
	case config.ConnectorSerial:
		return strings.TrimSpace(cfg.SerialPort)
	default:
		return ""
	}
}

// ConnectionStatusFromConfig is the status shown before the link reports.
func ConnectionStatusFromConfig(cfg config.ConnectionConfig) connectors.ConnectionStatus {
	return connectors.ConnectionStatus{
		State:         connectors.ConnectionStateIdle,
		TransportName: TransportNameFromConnector(cfg.Connector),
		Target:        ConnectionTarget(cfg),
	}
}

func ConnectionStateFromLink(state link.State) connectors.ConnectionState {
	switch state {
	case link.StateConnecting:
		return connectors.ConnectionStateConnecting
	case link.StateOpen:
		return connectors.ConnectionStateConnected
	case link.StateClosing:
		return connectors.ConnectionStateClosing
	case link.StateSuspended:
		return connectors.ConnectionStateSuspended
	case link.StateBackoff:
		return connectors.ConnectionStateBackoff
	case link.StateFailed:
		return connectors.ConnectionStateFailed
	default:
		return connectors.ConnectionStateIdle
	}
}

// ConnectionStatusFromLink converts a link snapshot into the bus event.
func ConnectionStatusFromLink(status link.Status) connectors.ConnectionStatus {
	out := connectors.ConnectionStatus{
		State:         ConnectionStateFromLink(status.State),
		TransportName: status.Transport,
		Target:        status.Target,
		Attempt:       status.Attempt,
		RetryIn:       status.RetryIn,
		Deferred:      status.Deferred,
		LastPongAt:    status.LastPongAt,
		Timestamp:     status.At,
	}
	if status.Err != nil {
		out.Err = status.Err.Error()
	}

	return out
}
