package connectors

import (
	"time"

	"github.com/irrigo/irrigo/internal/protocol"
)

// ConnectionState describes the link lifecycle state shown in UI.
type ConnectionState string

const (
	ConnectionStateIdle       ConnectionState = "idle"
	ConnectionStateConnecting ConnectionState = "connecting"
	ConnectionStateConnected  ConnectionState = "connected"
	ConnectionStateClosing    ConnectionState = "closing"
	ConnectionStateSuspended  ConnectionState = "suspended"
	ConnectionStateBackoff    ConnectionState = "backoff"
	ConnectionStateFailed     ConnectionState = "failed"
)

// ConnectionStatus is a bus event snapshot of current link status.
type ConnectionStatus struct {
	State         ConnectionState
	Err           string
	TransportName string
	Target        string
	Attempt       int
	RetryIn       time.Duration
	Deferred      bool
	LastPongAt    time.Time
	Timestamp     time.Time
}

// DeviceLog is a log line pushed by the controller.
type DeviceLog struct {
	Entry      protocol.LogEntry
	ReceivedAt time.Time
}

// DashboardUpdate is a sensor/relay snapshot pushed by the controller.
type DashboardUpdate struct {
	Dashboard  protocol.Dashboard
	ReceivedAt time.Time
}

// CountdownTick reports the countdown shown for one relay. Cleared means no
// countdown is running for it.
type CountdownTick struct {
	Index   int
	Seconds int
	Cleared bool
}

// RelayCommandResult acknowledges a relay toggle request. A rejected command
// must be reverted in UI.
type RelayCommandResult struct {
	Index    int
	Active   bool
	Accepted bool
	Err      string
}

// ParseFailure describes an inbound payload that was dropped.
type ParseFailure struct {
	Raw       string
	Err       string
	Timestamp time.Time
}

// LowWater reports a change of the reservoir level alarm.
type LowWater struct {
	Low       bool
	Timestamp time.Time
}
