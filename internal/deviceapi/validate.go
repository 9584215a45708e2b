package deviceapi

import (
	"github.com/pkg/errors"
)

// Ranges accepted by the controller's configuration form.
const (
	MinThreshold = 5
	MaxThreshold = 75

	MinActivationPeriodMs = 1_000
	MaxActivationPeriodMs = 60_000

	MinWateringIntervalMs = 1 * 3_600_000
	MaxWateringIntervalMs = 168 * 3_600_000

	MinTemperatureOffset = -10
	MaxTemperatureOffset = 10

	MinTelemetryIntervalMs = 10_000
	MaxTelemetryIntervalMs = 360_000
)

// Validate checks c against the controller's accepted ranges.
func (c ControllerConfig) Validate() error {
	if c.TemperatureOffset < MinTemperatureOffset || c.TemperatureOffset > MaxTemperatureOffset {
		return errors.Errorf("temperature offset %.1f out of range [%d, %d]", c.TemperatureOffset, MinTemperatureOffset, MaxTemperatureOffset)
	}
	if c.TelemetryInterval < MinTelemetryIntervalMs || c.TelemetryInterval > MaxTelemetryIntervalMs {
		return errors.Errorf("telemetry interval %dms out of range [%d, %d]", c.TelemetryInterval, MinTelemetryIntervalMs, MaxTelemetryIntervalMs)
	}
	for i, s := range c.SensorConfigs {
		if err := s.Validate(); err != nil {
			return errors.Wrapf(err, "sensor %d", i+1)
		}
	}

	return nil
}

func (s SensorConfig) Validate() error {
	if s.Threshold < MinThreshold || s.Threshold > MaxThreshold {
		return errors.Errorf("threshold %.1f out of range [%d, %d]", s.Threshold, MinThreshold, MaxThreshold)
	}
	if s.ActivationPeriod < MinActivationPeriodMs || s.ActivationPeriod > MaxActivationPeriodMs {
		return errors.Errorf("activation period %dms out of range [%d, %d]", s.ActivationPeriod, MinActivationPeriodMs, MaxActivationPeriodMs)
	}
	if s.WateringInterval < MinWateringIntervalMs || s.WateringInterval > MaxWateringIntervalMs {
		return errors.Errorf("watering interval %dms out of range [%d, %d]", s.WateringInterval, MinWateringIntervalMs, MaxWateringIntervalMs)
	}

	return nil
}

// Validate checks that the pin lists match the system size.
func (s Setup) Validate() error {
	if s.SystemSize <= 0 {
		return errors.Errorf("system size must be positive, got %d", s.SystemSize)
	}
	if len(s.SensorPins) != s.SystemSize {
		return errors.Errorf("expected %d sensor pins, got %d", s.SystemSize, len(s.SensorPins))
	}
	if len(s.RelayPins) != s.SystemSize {
		return errors.Errorf("expected %d relay pins, got %d", s.SystemSize, len(s.RelayPins))
	}

	return nil
}
