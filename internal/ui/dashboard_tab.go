package ui

import (
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/irrigo/irrigo/internal/countdown"
	"github.com/irrigo/irrigo/internal/domain"
	"github.com/irrigo/irrigo/internal/protocol"
)

type relayRow struct {
	index     int
	check     *widget.Check
	countdown *widget.Label
	// syncing suppresses OnChanged while the store drives the checkbox.
	syncing bool
}

type dashboardTab struct {
	widget.BaseWidget

	store    *domain.DashboardStore
	onToggle func(index int, active bool)

	temperature *widget.Label
	pressure    *widget.Label
	water       *widget.Label
	updated     *widget.Label
	moisture    *fyne.Container
	relayBox    *fyne.Container
	rows        map[int]*relayRow
	content     fyne.CanvasObject
}

func newDashboardTab(store *domain.DashboardStore, onToggle func(index int, active bool)) *dashboardTab {
	tab := &dashboardTab{
		store:       store,
		onToggle:    onToggle,
		temperature: widget.NewLabel("-"),
		pressure:    widget.NewLabel("-"),
		water:       widget.NewLabel("-"),
		updated:     widget.NewLabel("No data yet"),
		moisture:    container.NewVBox(),
		relayBox:    container.NewVBox(),
		rows:        make(map[int]*relayRow),
	}

	sensors := widget.NewForm(
		widget.NewFormItem("Temperature", tab.temperature),
		widget.NewFormItem("Pressure", tab.pressure),
		widget.NewFormItem("Water level", tab.water),
	)
	tab.content = container.NewVScroll(container.NewVBox(
		widget.NewCard("Sensors", "", container.NewVBox(sensors, tab.moisture)),
		widget.NewCard("Relays", "", tab.relayBox),
		tab.updated,
	))
	tab.ExtendBaseWidget(tab)
	tab.Refresh()

	return tab
}

func (t *dashboardTab) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(t.content)
}

// Refresh pulls the latest state from the store.
func (t *dashboardTab) Refresh() {
	if t.store != nil {
		dashboard, updatedAt := t.store.Dashboard()
		t.applyDashboard(dashboard, updatedAt)
		for _, view := range t.store.Relays() {
			t.applyRelay(view)
		}
	}
	t.BaseWidget.Refresh()
}

func (t *dashboardTab) applyDashboard(d protocol.Dashboard, updatedAt time.Time) {
	if updatedAt.IsZero() {
		return
	}
	t.temperature.SetText(formatTemperature(d.Temperature))
	t.pressure.SetText(formatPressure(d.Pressure))
	t.water.SetText(waterLevelText(d))
	t.updated.SetText("Updated " + updatedAt.Format(time.TimeOnly))

	for len(t.moisture.Objects) < len(d.Plants) {
		t.moisture.Add(widget.NewLabel(""))
	}
	for i, obj := range t.moisture.Objects {
		label, ok := obj.(*widget.Label)
		if !ok {
			continue
		}
		if i >= len(d.Plants) {
			label.Hide()
			continue
		}
		label.SetText(formatMoisture(i, d.Plants[i].Moisture))
		label.Show()
	}
}

func (t *dashboardTab) applyRelay(view domain.RelayView) {
	row, ok := t.rows[view.Index]
	if !ok {
		row = t.newRelayRow(view.Index)
		t.rows[view.Index] = row
		t.relayBox.Add(container.NewBorder(nil, nil, nil, row.countdown, row.check))
	}

	row.syncing = true
	row.check.SetChecked(view.Active)
	row.syncing = false
	if view.Pending {
		row.check.Disable()
	} else {
		row.check.Enable()
	}
	row.countdown.SetText(relayStatusText(view))
}

func (t *dashboardTab) newRelayRow(index int) *relayRow {
	row := &relayRow{index: index, countdown: widget.NewLabel("")}
	row.check = widget.NewCheck(relayTitle(index), func(active bool) {
		if row.syncing {
			return
		}
		appLogger.Debug("relay toggled", "relay", index, "active", active)
		if t.onToggle != nil {
			t.onToggle(index, active)
		}
	})

	return row
}

func relayTitle(index int) string {
	return fmt.Sprintf("Relay %d", index+1)
}

func relayStatusText(view domain.RelayView) string {
	switch {
	case view.Pending:
		return "waiting for controller"
	case view.CountdownRunning:
		return countdown.Format(view.CountdownSeconds)
	default:
		return ""
	}
}

func formatTemperature(celsius float64) string {
	return fmt.Sprintf("%.1f °C", celsius)
}

func formatPressure(hpa float64) string {
	return fmt.Sprintf("%.1f hPa", hpa)
}

func formatMoisture(index int, moisture float64) string {
	return fmt.Sprintf("Plant %d: %.0f%%", index+1, moisture)
}

func waterLevelText(d protocol.Dashboard) string {
	if d.LowWater() {
		return "Low, refill the reservoir"
	}

	return "OK"
}
