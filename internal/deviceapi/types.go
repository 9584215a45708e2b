package deviceapi

import (
	"github.com/irrigo/irrigo/internal/protocol"
)

// ControllerConfig is the tunable software configuration of the controller.
// Intervals and periods are in milliseconds, as the controller stores them.
type ControllerConfig struct {
	TemperatureOffset     float64        `json:"temperatureOffset"`
	TelemetryInterval     int64          `json:"telemetryInterval"`
	SensorUpdateInterval  int64          `json:"sensorUpdateInterval"`
	LCDUpdateInterval     int64          `json:"lcdUpdateInterval"`
	SensorPublishInterval int64          `json:"sensorPublishInterval"`
	SensorConfigs         []SensorConfig `json:"sensorConfigs"`
}

type SensorConfig struct {
	Threshold        float64 `json:"threshold"`
	ActivationPeriod int64   `json:"activationPeriod"`
	WateringInterval int64   `json:"wateringInterval"`
	SensorEnabled    *bool   `json:"sensorEnabled,omitempty"`
	RelayEnabled     *bool   `json:"relayEnabled,omitempty"`
}

// Setup is the hardware wiring of the controller.
type Setup struct {
	SystemSize     int   `json:"systemSize"`
	SDAPin         int   `json:"sdaPin"`
	SCLPin         int   `json:"sclPin"`
	FloatSwitchPin int   `json:"floatSwitchPin"`
	SensorPins     []int `json:"sensorPins"`
	RelayPins      []int `json:"relayPins"`
}

// SensorData is the one-shot snapshot served by /api/sensorData. It has the
// same shape as the dashboard frame.
type SensorData = protocol.Dashboard

// RelayResult is the controller's answer to a relay request.
type RelayResult struct {
	Success    bool   `json:"success"`
	RelayIndex int    `json:"relayIndex"`
	Message    string `json:"message"`
}

type relayRequest struct {
	Relay  int  `json:"relay"`
	Active bool `json:"active"`
}

type configEnvelope struct {
	Config ControllerConfig `json:"config"`
}
