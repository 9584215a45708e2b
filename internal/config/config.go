package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ConnectorType identifies which transport backend should be used.
type ConnectorType string

const (
	ConnectorWebSocket ConnectorType = "websocket"
	ConnectorSerial    ConnectorType = "serial"

	DefaultPort       = 80
	DefaultPath       = "/ws"
	DefaultSerialBaud = 115200

	DefaultHeartbeatInterval = 30 * time.Second
	DefaultPongTimeout       = 5 * time.Second
	DefaultBackoffBase       = 5 * time.Second
	DefaultBackoffMax        = 30 * time.Second
	DefaultMaxAttempts       = 5
	DefaultRelayCommandRate  = 4
)

// Duration is a time.Duration stored as a Go duration string.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var ms int64
		if numErr := json.Unmarshal(raw, &ms); numErr != nil {
			return fmt.Errorf("duration must be a string like \"30s\": %w", err)
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)

		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)

	return nil
}

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level"`
	LogToFile bool   `json:"log_to_file"`
}

// ConnectionConfig contains connector-specific connection parameters.
type ConnectionConfig struct {
	Connector  ConnectorType `json:"connector"`
	Host       string        `json:"host"`
	Port       int           `json:"port"`
	Path       string        `json:"path"`
	SerialPort string        `json:"serial_port"`
	SerialBaud int           `json:"serial_baud"`
}

// LinkConfig tunes heartbeat and reconnect behavior.
type LinkConfig struct {
	HeartbeatInterval Duration `json:"heartbeat_interval"`
	PongTimeout       Duration `json:"pong_timeout"`
	BackoffBase       Duration `json:"backoff_base"`
	BackoffMax        Duration `json:"backoff_max"`
	// MaxAttempts of 0 retries forever.
	MaxAttempts int `json:"max_attempts"`
	// RelayCommandRate is relay commands per second. 0 disables throttling.
	RelayCommandRate float64 `json:"relay_command_rate"`
}

// UIConfig stores persistent UI preferences.
type UIConfig struct {
	Notifications NotificationConfig `json:"notifications"`
}

// NotificationConfig stores desktop notification preferences.
type NotificationConfig struct {
	NotifyWhenFocused bool                     `json:"notify_when_focused"`
	Events            NotificationEventsConfig `json:"events"`
}

// NotificationEventsConfig stores per-event notification toggles.
type NotificationEventsConfig struct {
	ConnectionLost bool `json:"connection_lost"`
	LowWater       bool `json:"low_water"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Connection ConnectionConfig `json:"connection"`
	Link       LinkConfig       `json:"link"`
	Logging    LoggingConfig    `json:"logging"`
	UI         UIConfig         `json:"ui"`
}

func Default() AppConfig {
	return AppConfig{
		Connection: ConnectionConfig{
			Connector:  ConnectorWebSocket,
			Host:       "",
			Port:       DefaultPort,
			Path:       DefaultPath,
			SerialPort: "",
			SerialBaud: DefaultSerialBaud,
		},
		Link: LinkConfig{
			HeartbeatInterval: Duration(DefaultHeartbeatInterval),
			PongTimeout:       Duration(DefaultPongTimeout),
			BackoffBase:       Duration(DefaultBackoffBase),
			BackoffMax:        Duration(DefaultBackoffMax),
			MaxAttempts:       DefaultMaxAttempts,
			RelayCommandRate:  DefaultRelayCommandRate,
		},
		Logging: LoggingConfig{
			Level:     "info",
			LogToFile: false,
		},
		UI: UIConfig{
			Notifications: NotificationConfig{
				NotifyWhenFocused: false,
				Events: NotificationEventsConfig{
					ConnectionLost: true,
					LowWater:       true,
				},
			},
		},
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime and points to user config dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	if c.Connection.Connector == "" {
		c.Connection.Connector = ConnectorWebSocket
	}
	if c.Connection.Port <= 0 {
		c.Connection.Port = DefaultPort
	}
	if c.Connection.Path == "" {
		c.Connection.Path = DefaultPath
	}
	if !strings.HasPrefix(c.Connection.Path, "/") {
		c.Connection.Path = "/" + c.Connection.Path
	}
	if c.Connection.SerialBaud <= 0 {
		c.Connection.SerialBaud = DefaultSerialBaud
	}
	if c.Link.HeartbeatInterval <= 0 {
		c.Link.HeartbeatInterval = Duration(DefaultHeartbeatInterval)
	}
	if c.Link.PongTimeout <= 0 {
		c.Link.PongTimeout = Duration(DefaultPongTimeout)
	}
	if c.Link.BackoffBase <= 0 {
		c.Link.BackoffBase = Duration(DefaultBackoffBase)
	}
	if c.Link.BackoffMax <= 0 {
		c.Link.BackoffMax = Duration(DefaultBackoffMax)
	}
	if c.Link.MaxAttempts < 0 {
		c.Link.MaxAttempts = DefaultMaxAttempts
	}
	if c.Link.RelayCommandRate < 0 {
		c.Link.RelayCommandRate = DefaultRelayCommandRate
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c AppConfig) Validate() error {
	switch c.Connection.Connector {
	case ConnectorWebSocket:
		if strings.TrimSpace(c.Connection.Host) == "" {
			return errors.New("controller host is required")
		}
		if c.Connection.Port <= 0 || c.Connection.Port > 65535 {
			return fmt.Errorf("invalid port: %d", c.Connection.Port)
		}
	case ConnectorSerial:
		if strings.TrimSpace(c.Connection.SerialPort) == "" {
			return errors.New("serial port is required")
		}
		if c.Connection.SerialBaud <= 0 {
			return errors.New("serial baud must be positive")
		}
	default:
		return fmt.Errorf("unknown connector: %s", c.Connection.Connector)
	}

	if c.Link.PongTimeout >= c.Link.HeartbeatInterval {
		return errors.New("pong timeout must be shorter than the heartbeat interval")
	}
	if c.Link.BackoffMax < c.Link.BackoffBase {
		return errors.New("backoff max must not be below backoff base")
	}

	return nil
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
