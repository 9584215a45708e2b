package ui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"

	"github.com/irrigo/irrigo/internal/app"
	"github.com/irrigo/irrigo/internal/config"
	"github.com/irrigo/irrigo/internal/transport"
)

const (
	connectorOptionWebSocket = "WebSocket"
	connectorOptionSerial    = "Serial"
)

var defaultSerialBaudOptions = []string{"9600", "19200", "38400", "57600", "115200", "230400", "460800", "921600"}

// listSerialPorts is replaced in tests.
var listSerialPorts = transport.Ports

type settingsForm struct {
	connectorSelect  *widget.Select
	hostEntry        *widget.Entry
	portEntry        *widget.Entry
	pathEntry        *widget.Entry
	serialPortSelect *widget.Select
	serialBaudSelect *widget.Select

	heartbeatEntry   *widget.Entry
	pongEntry        *widget.Entry
	backoffBaseEntry *widget.Entry
	backoffMaxEntry  *widget.Entry
	maxAttemptsEntry *widget.Entry
	relayRateEntry   *widget.Entry

	notifyFocused  *widget.Check
	notifyConnLost *widget.Check
	notifyLowWater *widget.Check

	levelSelect *widget.Select
	logToFile   *widget.Check
}

func newSettingsForm(current config.AppConfig) *settingsForm {
	f := &settingsForm{
		connectorSelect:  widget.NewSelect([]string{connectorOptionWebSocket, connectorOptionSerial}, nil),
		hostEntry:        widget.NewEntry(),
		portEntry:        widget.NewEntry(),
		pathEntry:        widget.NewEntry(),
		serialPortSelect: widget.NewSelect(nil, nil),
		serialBaudSelect: widget.NewSelect(uniqueValues(append(defaultSerialBaudOptions, strconv.Itoa(current.Connection.SerialBaud))), nil),
		heartbeatEntry:   widget.NewEntry(),
		pongEntry:        widget.NewEntry(),
		backoffBaseEntry: widget.NewEntry(),
		backoffMaxEntry:  widget.NewEntry(),
		maxAttemptsEntry: widget.NewEntry(),
		relayRateEntry:   widget.NewEntry(),
		notifyFocused:    widget.NewCheck("", nil),
		notifyConnLost:   widget.NewCheck("", nil),
		notifyLowWater:   widget.NewCheck("", nil),
		levelSelect:      widget.NewSelect([]string{"debug", "info", "warn", "error"}, nil),
		logToFile:        widget.NewCheck("", nil),
	}

	f.connectorSelect.SetSelected(connectorOptionFromType(current.Connection.Connector))
	f.hostEntry.SetPlaceHolder("IP address or hostname")
	f.hostEntry.SetText(current.Connection.Host)
	f.portEntry.SetText(strconv.Itoa(current.Connection.Port))
	f.pathEntry.SetText(current.Connection.Path)
	f.serialPortSelect.PlaceHolder = "Select serial port"
	f.serialPortSelect.SetOptions(uniqueValues([]string{current.Connection.SerialPort}))
	f.serialPortSelect.SetSelected(current.Connection.SerialPort)
	f.serialBaudSelect.SetSelected(strconv.Itoa(current.Connection.SerialBaud))

	f.heartbeatEntry.SetText(current.Link.HeartbeatInterval.Std().String())
	f.pongEntry.SetText(current.Link.PongTimeout.Std().String())
	f.backoffBaseEntry.SetText(current.Link.BackoffBase.Std().String())
	f.backoffMaxEntry.SetText(current.Link.BackoffMax.Std().String())
	f.maxAttemptsEntry.SetText(strconv.Itoa(current.Link.MaxAttempts))
	f.maxAttemptsEntry.SetPlaceHolder("0 retries forever")
	f.relayRateEntry.SetText(strconv.FormatFloat(current.Link.RelayCommandRate, 'f', -1, 64))

	f.notifyFocused.SetChecked(current.UI.Notifications.NotifyWhenFocused)
	f.notifyConnLost.SetChecked(current.UI.Notifications.Events.ConnectionLost)
	f.notifyLowWater.SetChecked(current.UI.Notifications.Events.LowWater)

	f.levelSelect.SetSelected(strings.ToLower(current.Logging.Level))
	if f.levelSelect.Selected == "" {
		f.levelSelect.SetSelected("info")
	}
	f.logToFile.SetChecked(current.Logging.LogToFile)

	return f
}

// apply copies the form onto base. Validation of the combined config is left
// to the save action.
func (f *settingsForm) apply(base config.AppConfig) (config.AppConfig, error) {
	cfg := base
	cfg.Connection.Connector = connectorTypeFromOption(f.connectorSelect.Selected)
	cfg.Connection.Host = strings.TrimSpace(f.hostEntry.Text)
	cfg.Connection.Path = strings.TrimSpace(f.pathEntry.Text)
	cfg.Connection.SerialPort = strings.TrimSpace(f.serialPortSelect.Selected)

	var err error
	if cfg.Connection.Connector == config.ConnectorWebSocket {
		if cfg.Connection.Port, err = parsePort(f.portEntry.Text); err != nil {
			return config.AppConfig{}, err
		}
	}
	if cfg.Connection.Connector == config.ConnectorSerial {
		if cfg.Connection.SerialBaud, err = parseSerialBaud(f.serialBaudSelect.Selected); err != nil {
			return config.AppConfig{}, err
		}
	}

	durations := []struct {
		name  string
		entry *widget.Entry
		dst   *config.Duration
	}{
		{"heartbeat interval", f.heartbeatEntry, &cfg.Link.HeartbeatInterval},
		{"pong timeout", f.pongEntry, &cfg.Link.PongTimeout},
		{"backoff base", f.backoffBaseEntry, &cfg.Link.BackoffBase},
		{"backoff max", f.backoffMaxEntry, &cfg.Link.BackoffMax},
	}
	for _, d := range durations {
		v, err := parseDurationField(d.name, d.entry.Text)
		if err != nil {
			return config.AppConfig{}, err
		}
		*d.dst = config.Duration(v)
	}
	attempts, err := strconv.Atoi(strings.TrimSpace(f.maxAttemptsEntry.Text))
	if err != nil || attempts < 0 {
		return config.AppConfig{}, fmt.Errorf("invalid max attempts %q", f.maxAttemptsEntry.Text)
	}
	cfg.Link.MaxAttempts = attempts
	rate, err := strconv.ParseFloat(strings.TrimSpace(f.relayRateEntry.Text), 64)
	if err != nil || rate < 0 {
		return config.AppConfig{}, fmt.Errorf("invalid relay command rate %q", f.relayRateEntry.Text)
	}
	cfg.Link.RelayCommandRate = rate

	cfg.UI.Notifications.NotifyWhenFocused = f.notifyFocused.Checked
	cfg.UI.Notifications.Events.ConnectionLost = f.notifyConnLost.Checked
	cfg.UI.Notifications.Events.LowWater = f.notifyLowWater.Checked
	cfg.Logging.Level = f.levelSelect.Selected
	cfg.Logging.LogToFile = f.logToFile.Checked

	return cfg, nil
}

// refreshPorts reloads the serial port options, keeping the configured and
// selected ports listed. It returns the number of options.
func (f *settingsForm) refreshPorts(configured string) (int, error) {
	selected := strings.TrimSpace(f.serialPortSelect.Selected)
	ports, err := listSerialPorts()
	if err != nil {
		return 0, err
	}
	sort.Strings(ports)
	ports = uniqueValues(append(ports, configured, selected))
	f.serialPortSelect.SetOptions(ports)
	if selected != "" {
		f.serialPortSelect.SetSelected(selected)
	}

	return len(ports), nil
}

func newSettingsTab(dep RuntimeDependencies, connStatusLabel *widget.Label, reconnectButton *widget.Button, window fyne.Window) fyne.CanvasObject {
	current := dep.Data.Config
	current.FillMissingDefaults()
	form := newSettingsForm(current)
	showConfirm := confirmHook(dep)

	status := widget.NewLabel("")
	status.Wrapping = fyne.TextWrapWord

	refreshPorts := func() {
		n, err := form.refreshPorts(current.Connection.SerialPort)
		switch {
		case err != nil:
			status.SetText("Failed to list serial ports: " + err.Error())
		case n == 0:
			status.SetText("No serial ports detected")
		default:
			status.SetText("")
		}
	}
	refreshPortsButton := widget.NewButton("Refresh", refreshPorts)
	serialPortRow := container.NewBorder(nil, nil, nil, refreshPortsButton, form.serialPortSelect)

	hostLabel := widget.NewLabel("Host")
	portLabel := widget.NewLabel("Port")
	pathLabel := widget.NewLabel("Path")
	serialPortLabel := widget.NewLabel("Serial Port")
	serialBaudLabel := widget.NewLabel("Serial Baud")
	connectionFields := container.New(layout.NewFormLayout(),
		widget.NewLabel("Connector"), form.connectorSelect,
		hostLabel, form.hostEntry,
		portLabel, form.portEntry,
		pathLabel, form.pathEntry,
		serialPortLabel, serialPortRow,
		serialBaudLabel, form.serialBaudSelect,
	)
	setConnectorFields := func(connector config.ConnectorType) {
		showWS := connector == config.ConnectorWebSocket
		setVisible(showWS, hostLabel, form.hostEntry, portLabel, form.portEntry, pathLabel, form.pathEntry)
		setVisible(!showWS, serialPortLabel, serialPortRow, serialBaudLabel, form.serialBaudSelect)
	}
	form.connectorSelect.OnChanged = func(value string) {
		next := connectorTypeFromOption(value)
		setConnectorFields(next)
		if next == config.ConnectorSerial {
			refreshPorts()
		}
	}
	setConnectorFields(current.Connection.Connector)
	if current.Connection.Connector == config.ConnectorSerial {
		refreshPorts()
	}

	saveButton := widget.NewButton("Save", func() {
		cfg, err := form.apply(current)
		if err != nil {
			status.SetText("Save failed: " + err.Error())
			return
		}
		if dep.Actions.OnSave == nil {
			status.SetText("Save failed: saving is not available")
			return
		}
		if err := dep.Actions.OnSave(cfg); err != nil {
			status.SetText("Save failed: " + err.Error())
			return
		}
		current = cfg
		status.SetText("Saved")
	})
	saveButton.Importance = widget.HighImportance

	clearDBButton := widget.NewButton("Clear database", func() {
		if dep.Actions.OnClearDB == nil {
			status.SetText("Database clear is not available")
			return
		}
		showConfirm("Clear database?", "Stored device logs and sensor samples will be deleted. Continue?", func(ok bool) {
			if !ok {
				return
			}
			if err := dep.Actions.OnClearDB(); err != nil {
				status.SetText("Database clear failed: " + err.Error())
				return
			}
			status.SetText("Database cleared")
		}, window)
	})
	if dep.Actions.OnClearDB == nil {
		clearDBButton.Disable()
	}

	connectionHeader := container.NewBorder(nil, nil, nil, reconnectButton, connStatusLabel)
	linkForm := widget.NewForm(
		widget.NewFormItem("Heartbeat interval", form.heartbeatEntry),
		widget.NewFormItem("Pong timeout", form.pongEntry),
		widget.NewFormItem("Retry delay", form.backoffBaseEntry),
		widget.NewFormItem("Max retry delay", form.backoffMaxEntry),
		widget.NewFormItem("Max attempts", form.maxAttemptsEntry),
		widget.NewFormItem("Relay commands/s", form.relayRateEntry),
	)
	notificationsForm := widget.NewForm(
		widget.NewFormItem("Notify when focused", form.notifyFocused),
		widget.NewFormItem("Connection lost", form.notifyConnLost),
		widget.NewFormItem("Low water", form.notifyLowWater),
	)
	loggingForm := widget.NewForm(
		widget.NewFormItem("Log Level", form.levelSelect),
		widget.NewFormItem("Log to file", form.logToFile),
	)

	content := container.NewVBox(
		widget.NewLabel("App settings"),
		widget.NewCard("Connection", "", container.NewVBox(connectionHeader, connectionFields)),
		widget.NewCard("Link", "", linkForm),
		widget.NewCard("Notifications", "", notificationsForm),
		widget.NewCard("Logging", "", loggingForm),
		widget.NewCard("Maintenance", "", clearDBButton),
		saveButton,
		widget.NewLabel("Version: "+app.BuildVersionWithDate()),
		status,
	)

	return container.NewVScroll(content)
}

func setVisible(visible bool, objects ...fyne.CanvasObject) {
	for _, object := range objects {
		if visible {
			object.Show()
			continue
		}
		object.Hide()
	}
}

func uniqueValues(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		unique = append(unique, trimmed)
	}

	return unique
}

func connectorOptionFromType(connector config.ConnectorType) string {
	switch connector {
	case config.ConnectorSerial:
		return connectorOptionSerial
	default:
		return connectorOptionWebSocket
	}
}

func connectorTypeFromOption(value string) config.ConnectorType {
	switch strings.TrimSpace(value) {
	case connectorOptionSerial:
		return config.ConnectorSerial
	default:
		return config.ConnectorWebSocket
	}
}

func parseSerialBaud(value string) (int, error) {
	baud, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid serial baud %q", value)
	}
	if baud <= 0 {
		return 0, fmt.Errorf("serial baud must be positive")
	}

	return baud, nil
}

func parsePort(value string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", value)
	}

	return port, nil
}

func parseDurationField(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q, use values like 30s or 1m", name, value)
	}

	return d, nil
}
