package ui

import (
	"strings"
	"testing"
	"time"

	fynetest "fyne.io/fyne/v2/test"

	"github.com/irrigo/irrigo/internal/config"
)

func TestSettingsFormApplyCopiesFields(t *testing.T) {
	app := fynetest.NewApp()
	t.Cleanup(app.Quit)

	base := config.Default()
	base.Connection.Host = "192.168.4.1"
	form := newSettingsForm(base)

	form.hostEntry.SetText(" irrigo.local ")
	form.portEntry.SetText("8080")
	form.heartbeatEntry.SetText("15s")
	form.pongEntry.SetText("3s")
	form.maxAttemptsEntry.SetText("0")
	form.notifyLowWater.SetChecked(false)
	form.levelSelect.SetSelected("debug")

	cfg, err := form.apply(base)
	if err != nil {
		t.Fatalf("apply form: %v", err)
	}
	if cfg.Connection.Host != "irrigo.local" || cfg.Connection.Port != 8080 {
		t.Fatalf("unexpected connection: %+v", cfg.Connection)
	}
	if cfg.Link.HeartbeatInterval.Std() != 15*time.Second || cfg.Link.PongTimeout.Std() != 3*time.Second {
		t.Fatalf("unexpected link timings: %+v", cfg.Link)
	}
	if cfg.Link.MaxAttempts != 0 {
		t.Fatalf("expected unbounded attempts, got %d", cfg.Link.MaxAttempts)
	}
	if cfg.UI.Notifications.Events.LowWater {
		t.Fatalf("expected low water notifications to be disabled")
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected applied config to validate: %v", err)
	}
}

func TestSettingsFormApplySerial(t *testing.T) {
	app := fynetest.NewApp()
	t.Cleanup(app.Quit)

	base := config.Default()
	form := newSettingsForm(base)
	form.connectorSelect.SetSelected(connectorOptionSerial)
	form.serialPortSelect.SetOptions([]string{"/dev/ttyUSB0"})
	form.serialPortSelect.SetSelected("/dev/ttyUSB0")
	form.serialBaudSelect.SetSelected("9600")
	form.portEntry.SetText("not a port")

	cfg, err := form.apply(base)
	if err != nil {
		t.Fatalf("expected websocket port to be ignored for serial, got %v", err)
	}
	if cfg.Connection.Connector != config.ConnectorSerial || cfg.Connection.SerialBaud != 9600 {
		t.Fatalf("unexpected serial config: %+v", cfg.Connection)
	}
}

func TestSettingsFormApplyRejectsBadFields(t *testing.T) {
	app := fynetest.NewApp()
	t.Cleanup(app.Quit)

	tests := []struct {
		name string
		edit func(*settingsForm)
		want string
	}{
		{name: "port", edit: func(f *settingsForm) { f.portEntry.SetText("70000") }, want: "port"},
		{name: "duration", edit: func(f *settingsForm) { f.pongEntry.SetText("5") }, want: "pong timeout"},
		{name: "attempts", edit: func(f *settingsForm) { f.maxAttemptsEntry.SetText("-1") }, want: "max attempts"},
		{name: "rate", edit: func(f *settingsForm) { f.relayRateEntry.SetText("fast") }, want: "relay command rate"},
	}

	for _, tc := range tests {
		form := newSettingsForm(config.Default())
		tc.edit(form)
		_, err := form.apply(config.Default())
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error mentioning %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestSettingsTabSerialRefreshUsesPortList(t *testing.T) {
	app := fynetest.NewApp()
	t.Cleanup(app.Quit)

	prev := listSerialPorts
	listSerialPorts = func() ([]string, error) {
		return []string{"/dev/ttyUSB1", "/dev/ttyACM0"}, nil
	}
	t.Cleanup(func() { listSerialPorts = prev })

	cfg := config.Default()
	cfg.Connection.Connector = config.ConnectorSerial
	cfg.Connection.SerialPort = "/dev/ttyUSB0"
	form := newSettingsForm(cfg)
	n, err := form.refreshPorts(cfg.Connection.SerialPort)
	if err != nil {
		t.Fatalf("refresh ports: %v", err)
	}
	want := []string{"/dev/ttyACM0", "/dev/ttyUSB1", "/dev/ttyUSB0"}
	if n != len(want) || strings.Join(form.serialPortSelect.Options, ",") != strings.Join(want, ",") {
		t.Fatalf("expected options %v, got %v", want, form.serialPortSelect.Options)
	}
	if form.serialPortSelect.Selected != "/dev/ttyUSB0" {
		t.Fatalf("expected configured port to stay selected, got %q", form.serialPortSelect.Selected)
	}
}

func TestParseHelpers(t *testing.T) {
	if _, err := parseSerialBaud("0"); err == nil {
		t.Fatalf("expected zero baud to fail")
	}
	if got, err := parsePort(" 80 "); err != nil || got != 80 {
		t.Fatalf("expected port 80, got %d, %v", got, err)
	}
	if _, err := parseDurationField("x", "-1s"); err == nil {
		t.Fatalf("expected negative duration to fail")
	}
	if got := uniqueValues([]string{" a", "a", "", "b"}); len(got) != 2 {
		t.Fatalf("expected two unique values, got %v", got)
	}
	if connectorTypeFromOption(connectorOptionFromType(config.ConnectorSerial)) != config.ConnectorSerial {
		t.Fatalf("expected serial option to map back")
	}
}
