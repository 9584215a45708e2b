package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/irrigo/irrigo/internal/deviceapi"
	"github.com/irrigo/irrigo/internal/protocol"
)

const maxPendingLogs = 200

type relayState struct {
	active bool
	until  time.Time
}

// device simulates the controller's sensors, relays and log buffer. It is safe
// for concurrent use.
type device struct {
	mu       sync.Mutex
	logger   *slog.Logger
	rng      *rand.Rand
	cfg      deviceapi.ControllerConfig
	defaults deviceapi.ControllerConfig
	setup    deviceapi.Setup

	relays      []relayState
	moisture    []float64
	temperature float64
	pressure    float64
	waterOK     bool
	logs        []protocol.LogEntry
}

func defaultControllerConfig(size int) deviceapi.ControllerConfig {
	cfg := deviceapi.ControllerConfig{
		TemperatureOffset:     0,
		TelemetryInterval:     60_000,
		SensorUpdateInterval:  5_000,
		LCDUpdateInterval:     1_000,
		SensorPublishInterval: 2_000,
		SensorConfigs:         make([]deviceapi.SensorConfig, size),
	}
	for i := range cfg.SensorConfigs {
		cfg.SensorConfigs[i] = deviceapi.SensorConfig{
			Threshold:        30,
			ActivationPeriod: 10_000,
			WateringInterval: 12 * 3_600_000,
		}
	}

	return cfg
}

func newDevice(size int, seed uint64, logger *slog.Logger) *device {
	if size <= 0 {
		size = 4
	}
	defaults := defaultControllerConfig(size)
	setup := deviceapi.Setup{
		SystemSize:     size,
		SDAPin:         21,
		SCLPin:         22,
		FloatSwitchPin: 4,
		SensorPins:     make([]int, size),
		RelayPins:      make([]int, size),
	}
	for i := 0; i < size; i++ {
		setup.SensorPins[i] = 32 + i
		setup.RelayPins[i] = 16 + i
	}

	d := &device{
		logger:      logger,
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		cfg:         defaults,
		defaults:    defaults,
		setup:       setup,
		relays:      make([]relayState, size),
		moisture:    make([]float64, size),
		temperature: 22,
		pressure:    1013,
		waterOK:     true,
	}
	for i := range d.moisture {
		d.moisture[i] = 40 + float64(i)*5
	}
	d.pushLogLocked(protocol.LevelInfo, "SYSTEM", fmt.Sprintf("mock controller started with %d channels", size))

	return d
}

func (d *device) Config() deviceapi.ControllerConfig {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.cfg
}

func (d *device) DefaultConfig() deviceapi.ControllerConfig {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.defaults
}

func (d *device) SaveConfig(cfg deviceapi.ControllerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(cfg.SensorConfigs) != len(d.relays) {
		return fmt.Errorf("expected %d sensor configs, got %d", len(d.relays), len(cfg.SensorConfigs))
	}
	d.cfg = cfg
	d.pushLogLocked(protocol.LevelInfo, "CONFIG", "configuration saved")

	return nil
}

func (d *device) ResetToDefault() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = d.defaults
	d.pushLogLocked(protocol.LevelWarning, "CONFIG", "configuration reset to defaults")
}

func (d *device) Setup() deviceapi.Setup {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.setup
}

func (d *device) SaveSetup(setup deviceapi.Setup) error {
	if setup.SystemSize != len(setup.SensorPins) || setup.SystemSize != len(setup.RelayPins) {
		return fmt.Errorf("system size %d does not match pin lists", setup.SystemSize)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if setup.SystemSize != len(d.relays) {
		return fmt.Errorf("mock controller has %d channels", len(d.relays))
	}
	d.setup = setup
	d.pushLogLocked(protocol.LevelInfo, "SETUP", "hardware setup saved")

	return nil
}

// SetRelay switches relay index. An activation runs for the configured
// activation period.
func (d *device) SetRelay(index int, active bool, now time.Time) (protocol.RelayUpdate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if index < 0 || index >= len(d.relays) {
		return protocol.RelayUpdate{}, fmt.Errorf("invalid relay index %d", index)
	}
	sensor := d.cfg.SensorConfigs[index]
	if active && sensor.RelayEnabled != nil && !*sensor.RelayEnabled {
		return protocol.RelayUpdate{}, fmt.Errorf("relay %d is disabled", index+1)
	}
	if active && !d.waterOK {
		return protocol.RelayUpdate{}, fmt.Errorf("water level too low")
	}

	state := relayState{active: active}
	if active {
		state.until = now.Add(time.Duration(sensor.ActivationPeriod) * time.Millisecond)
	}
	d.relays[index] = state
	verb := "off"
	if active {
		verb = "on"
	}
	d.pushLogLocked(protocol.LevelInfo, "RELAY", fmt.Sprintf("relay %d switched %s", index+1, verb))

	return d.relayUpdateLocked(index, now), nil
}

func (d *device) relayUpdateLocked(index int, now time.Time) protocol.RelayUpdate {
	r := d.relays[index]
	update := protocol.RelayUpdate{Index: index, Active: r.active}
	if r.active {
		update.RemainingMs = max(r.until.Sub(now).Milliseconds(), 0)
	}

	return update
}

// Step advances the simulation to now and returns the relays that timed out.
func (d *device) Step(now time.Time) []protocol.RelayUpdate {
	d.mu.Lock()
	defer d.mu.Unlock()

	var expired []protocol.RelayUpdate
	for i, r := range d.relays {
		if r.active && !now.Before(r.until) {
			d.relays[i] = relayState{}
			expired = append(expired, protocol.RelayUpdate{Index: i})
			d.pushLogLocked(protocol.LevelInfo, "RELAY", fmt.Sprintf("relay %d activation finished", i+1))
		}
	}

	for i := range d.moisture {
		delta := -0.2 + d.rng.Float64()*0.3
		if d.relays[i].active {
			delta = 1.5
		}
		d.moisture[i] = math.Min(math.Max(d.moisture[i]+delta, 0), 100)
		if d.moisture[i] < d.cfg.SensorConfigs[i].Threshold && d.rng.IntN(10) == 0 {
			d.pushLogLocked(protocol.LevelWarning, "SENSOR", fmt.Sprintf("plant %d moisture %.0f%% below threshold", i+1, d.moisture[i]))
		}
	}
	d.temperature += -0.05 + d.rng.Float64()*0.1
	d.pressure += -0.2 + d.rng.Float64()*0.4

	return expired
}

func (d *device) SetWaterLevel(ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.waterOK == ok {
		return
	}
	d.waterOK = ok
	if !ok {
		d.pushLogLocked(protocol.LevelError, "WATER", "reservoir empty")
	} else {
		d.pushLogLocked(protocol.LevelInfo, "WATER", "reservoir refilled")
	}
}

func (d *device) Dashboard(now time.Time) protocol.Dashboard {
	d.mu.Lock()
	defer d.mu.Unlock()

	dash := protocol.Dashboard{
		Plants:      make([]protocol.Plant, len(d.moisture)),
		Temperature: d.temperature + d.cfg.TemperatureOffset,
		Pressure:    d.pressure,
		WaterLevel:  d.waterOK,
		Relays:      make([]protocol.RelayState, len(d.relays)),
	}
	for i, m := range d.moisture {
		dash.Plants[i] = protocol.Plant{Moisture: m}
	}
	for i := range d.relays {
		u := d.relayUpdateLocked(i, now)
		// The dashboard frame carries whole seconds, rounded up.
		dash.Relays[i] = protocol.RelayState{Active: u.Active, ActivationTime: (u.RemainingMs + 999) / 1000}
	}

	return dash
}

// PopLog hands out the oldest buffered log line, the way /api/logs drains the
// controller's buffer one entry per request.
func (d *device) PopLog() (protocol.LogEntry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.logs) == 0 {
		return protocol.LogEntry{}, false
	}
	entry := d.logs[0]
	d.logs = d.logs[1:]

	return entry, true
}

// Log buffers a line for /api/logs and returns it for live streaming.
func (d *device) Log(level protocol.Level, tag, message string) protocol.LogEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.pushLogLocked(level, tag, message)
}

func (d *device) pushLogLocked(level protocol.Level, tag, message string) protocol.LogEntry {
	entry := protocol.LogEntry{Tag: tag, Level: level, Message: message}
	d.logs = append(d.logs, entry)
	if len(d.logs) > maxPendingLogs {
		d.logs = d.logs[len(d.logs)-maxPendingLogs:]
	}
	d.logger.Debug("device log", "line", entry.String())

	return entry
}

type typedFrame struct {
	Type protocol.Kind `json:"type"`
}

type logFrame struct {
	Type protocol.Kind `json:"type"`
	protocol.LogEntry
}

type relayUpdateFrame struct {
	Type        protocol.Kind `json:"type"`
	Index       int           `json:"index"`
	Active      bool          `json:"active"`
	RemainingMs int64         `json:"remainingMs"`
}

type dashboardFrame struct {
	Type protocol.Kind `json:"type"`
	protocol.Dashboard
}

func encodeFrame(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("encode frame %T: %v", v, err))
	}

	return raw
}

func encodeLog(entry protocol.LogEntry) []byte {
	return encodeFrame(logFrame{Type: protocol.KindLog, LogEntry: entry})
}

func encodeRelayUpdate(u protocol.RelayUpdate) []byte {
	return encodeFrame(relayUpdateFrame{Type: protocol.KindRelayUpdate, Index: u.Index, Active: u.Active, RemainingMs: u.RemainingMs})
}

func encodeDashboard(d protocol.Dashboard) []byte {
	return encodeFrame(dashboardFrame{Type: protocol.KindDashboard, Dashboard: d})
}
