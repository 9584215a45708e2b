package domain

import (
	"time"

	"github.com/irrigo/irrigo/internal/protocol"
)

// LogSource tells where a device log line came from.
type LogSource int

const (
	LogSourceLive LogSource = iota + 1
	LogSourceHistory
)

// DeviceLog is one controller log line as kept by the app.
type DeviceLog struct {
	ID         int64
	Tag        string
	Level      protocol.Level
	Message    string
	Source     LogSource
	ReceivedAt time.Time
}

func (l DeviceLog) Entry() protocol.LogEntry {
	return protocol.LogEntry{Tag: l.Tag, Level: l.Level, Message: l.Message}
}

func (l DeviceLog) String() string {
	return l.Entry().String()
}

func DeviceLogFromEntry(entry protocol.LogEntry, source LogSource, at time.Time) DeviceLog {
	return DeviceLog{
		Tag:        entry.Tag,
		Level:      entry.Level,
		Message:    entry.Message,
		Source:     source,
		ReceivedAt: at,
	}
}

// SensorSample is a persisted dashboard reading.
type SensorSample struct {
	ID          int64
	Moisture    []float64
	Temperature float64
	Pressure    float64
	WaterLevel  bool
	At          time.Time
}

func SampleFromDashboard(d protocol.Dashboard, at time.Time) SensorSample {
	moisture := make([]float64, 0, len(d.Plants))
	for _, p := range d.Plants {
		moisture = append(moisture, p.Moisture)
	}

	return SensorSample{
		Moisture:    moisture,
		Temperature: d.Temperature,
		Pressure:    d.Pressure,
		WaterLevel:  d.WaterLevel,
		At:          at,
	}
}

// RelayView is the UI state of one relay. Pending is set between a toggle
// request and its acknowledgement.
type RelayView struct {
	Index            int
	Active           bool
	Pending          bool
	CountdownSeconds int
	CountdownRunning bool
}
