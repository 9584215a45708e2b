package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/irrigo/irrigo/internal/deviceapi"
)

const controllerRequestTimeout = 10 * time.Second

type sensorFields struct {
	threshold     *widget.Entry
	activation    *widget.Entry
	watering      *widget.Entry
	sensorEnabled *widget.Check
	relayEnabled  *widget.Check
}

// controllerForm edits a ControllerConfig in the units shown on the
// controller's own page: seconds for activation and telemetry, hours for
// watering intervals.
type controllerForm struct {
	offset    *widget.Entry
	telemetry *widget.Entry
	sensors   []sensorFields
	sensorBox *fyne.Container
	base      deviceapi.ControllerConfig
}

func newControllerForm() *controllerForm {
	return &controllerForm{
		offset:    widget.NewEntry(),
		telemetry: widget.NewEntry(),
		sensorBox: container.NewVBox(),
	}
}

func (f *controllerForm) load(cfg deviceapi.ControllerConfig) {
	f.base = cfg
	f.offset.SetText(strconv.FormatFloat(cfg.TemperatureOffset, 'f', -1, 64))
	f.telemetry.SetText(strconv.FormatInt(cfg.TelemetryInterval/1000, 10))

	f.sensors = f.sensors[:0]
	f.sensorBox.RemoveAll()
	for i, s := range cfg.SensorConfigs {
		fields := sensorFields{
			threshold:     widget.NewEntry(),
			activation:    widget.NewEntry(),
			watering:      widget.NewEntry(),
			sensorEnabled: widget.NewCheck("Sensor enabled", nil),
			relayEnabled:  widget.NewCheck("Relay enabled", nil),
		}
		fields.threshold.SetText(strconv.FormatFloat(s.Threshold, 'f', -1, 64))
		fields.activation.SetText(strconv.FormatInt(s.ActivationPeriod/1000, 10))
		fields.watering.SetText(strconv.FormatInt(s.WateringInterval/3_600_000, 10))
		fields.sensorEnabled.SetChecked(enabled(s.SensorEnabled))
		fields.relayEnabled.SetChecked(enabled(s.RelayEnabled))
		f.sensors = append(f.sensors, fields)

		f.sensorBox.Add(widget.NewCard(fmt.Sprintf("Sensor %d", i+1), "", widget.NewForm(
			widget.NewFormItem("Moisture threshold, %", fields.threshold),
			widget.NewFormItem("Activation period, s", fields.activation),
			widget.NewFormItem("Watering interval, h", fields.watering),
			widget.NewFormItem("", container.NewHBox(fields.sensorEnabled, fields.relayEnabled)),
		)))
	}
}

func (f *controllerForm) read() (deviceapi.ControllerConfig, error) {
	cfg := f.base
	cfg.SensorConfigs = make([]deviceapi.SensorConfig, len(f.sensors))
	copy(cfg.SensorConfigs, f.base.SensorConfigs)

	var err error
	if cfg.TemperatureOffset, err = parseFloatField("temperature offset", f.offset.Text); err != nil {
		return deviceapi.ControllerConfig{}, err
	}
	if cfg.TelemetryInterval, err = parseScaledField("telemetry interval", f.telemetry.Text, 1000); err != nil {
		return deviceapi.ControllerConfig{}, err
	}
	for i, fields := range f.sensors {
		s := &cfg.SensorConfigs[i]
		if s.Threshold, err = parseFloatField(fmt.Sprintf("sensor %d threshold", i+1), fields.threshold.Text); err != nil {
			return deviceapi.ControllerConfig{}, err
		}
		if s.ActivationPeriod, err = parseScaledField(fmt.Sprintf("sensor %d activation period", i+1), fields.activation.Text, 1000); err != nil {
			return deviceapi.ControllerConfig{}, err
		}
		if s.WateringInterval, err = parseScaledField(fmt.Sprintf("sensor %d watering interval", i+1), fields.watering.Text, 3_600_000); err != nil {
			return deviceapi.ControllerConfig{}, err
		}
		sensorOn, relayOn := fields.sensorEnabled.Checked, fields.relayEnabled.Checked
		s.SensorEnabled = &sensorOn
		s.RelayEnabled = &relayOn
	}
	if err := cfg.Validate(); err != nil {
		return deviceapi.ControllerConfig{}, err
	}

	return cfg, nil
}

func newControllerTab(dep RuntimeDependencies, window fyne.Window) fyne.CanvasObject {
	runAsync, runOnUI := asyncHooks(dep)
	showConfirm := confirmHook(dep)

	form := newControllerForm()
	status := widget.NewLabel("Load the configuration from the controller to edit it.")
	status.Wrapping = fyne.TextWrapWord

	// call runs fn against the controller off the UI goroutine.
	call := func(action string, fn func(ctx context.Context, api ControllerAPI) error) {
		if dep.Actions.Controller == nil {
			status.SetText(action + " failed: controller api is not available")
			return
		}
		api, err := dep.Actions.Controller()
		if err != nil {
			status.SetText(action + " failed: " + err.Error())
			return
		}
		status.SetText(action + "...")
		runAsync(func() {
			ctx, cancel := context.WithTimeout(context.Background(), controllerRequestTimeout)
			defer cancel()
			err := fn(ctx, api)
			runOnUI(func() {
				if err != nil {
					appLogger.Warn("controller request failed", "action", action, "error", err)
					status.SetText(action + " failed: " + err.Error())
					return
				}
				status.SetText(action + " done")
			})
		})
	}

	loadWith := func(action string, get func(ctx context.Context, api ControllerAPI) (deviceapi.ControllerConfig, error)) {
		call(action, func(ctx context.Context, api ControllerAPI) error {
			cfg, err := get(ctx, api)
			if err != nil {
				return err
			}
			runOnUI(func() { form.load(cfg) })

			return nil
		})
	}

	loadButton := widget.NewButton("Load", func() {
		loadWith("Load", func(ctx context.Context, api ControllerAPI) (deviceapi.ControllerConfig, error) {
			return api.GetConfig(ctx)
		})
	})
	defaultsButton := widget.NewButton("Fill defaults", func() {
		loadWith("Fill defaults", func(ctx context.Context, api ControllerAPI) (deviceapi.ControllerConfig, error) {
			return api.GetDefaultConfig(ctx)
		})
	})
	saveButton := widget.NewButton("Save to controller", func() {
		cfg, err := form.read()
		if err != nil {
			status.SetText("Save failed: " + err.Error())
			return
		}
		call("Save", func(ctx context.Context, api ControllerAPI) error {
			return api.SaveConfig(ctx, cfg)
		})
	})
	saveButton.Importance = widget.HighImportance
	resetButton := widget.NewButton("Factory reset", func() {
		showConfirm(
			"Reset controller?",
			"The controller will drop its configuration and restart with defaults. Continue?",
			func(ok bool) {
				if !ok {
					status.SetText("Reset canceled")
					return
				}
				call("Reset", func(ctx context.Context, api ControllerAPI) error {
					return api.ResetToDefault(ctx)
				})
			},
			window,
		)
	})
	resetButton.Importance = widget.DangerImportance

	general := widget.NewForm(
		widget.NewFormItem("Temperature offset, °C", form.offset),
		widget.NewFormItem("Telemetry interval, s", form.telemetry),
	)

	return container.NewVScroll(container.NewVBox(
		widget.NewLabel("Controller configuration"),
		container.NewHBox(loadButton, defaultsButton, saveButton, resetButton),
		widget.NewCard("General", "", general),
		form.sensorBox,
		status,
	))
}

func enabled(flag *bool) bool {
	return flag == nil || *flag
}

func parseFloatField(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}

	return v, nil
}

// parseScaledField parses a whole number and multiplies it into milliseconds.
func parseScaledField(name, raw string, scale int64) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}

	return v * scale, nil
}
