package ui

import (
	"testing"
	"time"

	fynetest "fyne.io/fyne/v2/test"

	"github.com/irrigo/irrigo/internal/connectors"
	"github.com/irrigo/irrigo/internal/domain"
	"github.com/irrigo/irrigo/internal/protocol"
)

type toggle struct {
	index  int
	active bool
}

func newTestDashboard(t *testing.T) (*dashboardTab, *domain.DashboardStore, *[]toggle) {
	t.Helper()
	app := fynetest.NewApp()
	t.Cleanup(app.Quit)

	store := domain.NewDashboardStore()
	store.ApplyDashboard(protocol.Dashboard{
		Plants:      []protocol.Plant{{Moisture: 41}, {Moisture: 12}},
		Temperature: 21.56,
		Pressure:    1013.2,
		WaterLevel:  true,
		Relays:      []protocol.RelayState{{Active: false}, {Active: true, ActivationTime: 90}},
	}, time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC))

	var toggles []toggle
	tab := newDashboardTab(store, func(index int, active bool) {
		toggles = append(toggles, toggle{index: index, active: active})
	})

	return tab, store, &toggles
}

func TestDashboardTabRendersSensorsAndRelays(t *testing.T) {
	tab, _, toggles := newTestDashboard(t)

	if tab.temperature.Text != "21.6 °C" {
		t.Fatalf("unexpected temperature: %q", tab.temperature.Text)
	}
	if tab.water.Text != "OK" {
		t.Fatalf("unexpected water level: %q", tab.water.Text)
	}
	if len(tab.rows) != 2 {
		t.Fatalf("expected two relay rows, got %d", len(tab.rows))
	}
	if !tab.rows[1].check.Checked || tab.rows[0].check.Checked {
		t.Fatalf("expected relay checkboxes to follow the dashboard")
	}
	if len(*toggles) != 0 {
		t.Fatalf("expected store-driven updates not to send commands, got %v", *toggles)
	}
}

func TestDashboardTabToggleSendsCommandAndLocksUntilSettled(t *testing.T) {
	tab, store, toggles := newTestDashboard(t)

	fynetest.Tap(tab.rows[0].check)
	if len(*toggles) != 1 || (*toggles)[0] != (toggle{index: 0, active: true}) {
		t.Fatalf("expected toggle of relay 0 on, got %v", *toggles)
	}

	store.MarkPending(0, true)
	tab.Refresh()
	if !tab.rows[0].check.Disabled() {
		t.Fatalf("expected pending relay to be locked")
	}
	if got := tab.rows[0].countdown.Text; got != "waiting for controller" {
		t.Fatalf("unexpected pending text: %q", got)
	}

	store.ApplyCommandResult(connectors.RelayCommandResult{Index: 0, Active: true, Accepted: false})
	tab.Refresh()
	if tab.rows[0].check.Checked {
		t.Fatalf("expected rejected toggle to revert the checkbox")
	}
	if tab.rows[0].check.Disabled() {
		t.Fatalf("expected relay to unlock after rejection")
	}
	if len(*toggles) != 1 {
		t.Fatalf("expected revert not to send another command, got %v", *toggles)
	}
}

func TestDashboardTabShowsCountdown(t *testing.T) {
	tab, store, _ := newTestDashboard(t)

	store.ApplyCountdown(connectors.CountdownTick{Index: 1, Seconds: 75})
	tab.Refresh()
	if got := tab.rows[1].countdown.Text; got != "1:15" {
		t.Fatalf("expected countdown 1:15, got %q", got)
	}

	store.ApplyCountdown(connectors.CountdownTick{Index: 1, Cleared: true})
	tab.Refresh()
	if got := tab.rows[1].countdown.Text; got != "" {
		t.Fatalf("expected cleared countdown, got %q", got)
	}
}

func TestWaterLevelText(t *testing.T) {
	if got := waterLevelText(protocol.Dashboard{WaterLevel: false}); got != "Low, refill the reservoir" {
		t.Fatalf("unexpected low water text: %q", got)
	}
	if got := formatMoisture(0, 41.4); got != "Plant 1: 41%" {
		t.Fatalf("unexpected moisture text: %q", got)
	}
}
