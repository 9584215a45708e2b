package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	fynetest "fyne.io/fyne/v2/test"

	"github.com/irrigo/irrigo/internal/domain"
	"github.com/irrigo/irrigo/internal/protocol"
)

func TestFormatLogRow(t *testing.T) {
	at := time.Date(2026, 5, 1, 7, 5, 9, 0, time.UTC)
	live := domain.DeviceLogFromEntry(protocol.LogEntry{Tag: "PUMP", Level: protocol.LevelWarning, Message: "dry run"}, domain.LogSourceLive, at)
	if got := formatLogRow(live); got != "07:05:09 [PUMP] WARNING: dry run" {
		t.Fatalf("unexpected live row: %q", got)
	}

	history := live
	history.Source = domain.LogSourceHistory
	if got := formatLogRow(history); got != "07:05:09 [PUMP] WARNING: dry run (history)" {
		t.Fatalf("unexpected history row: %q", got)
	}
}

func TestImportStatusText(t *testing.T) {
	if got := importStatusText(0, errors.New("boom")); got != "Fetch failed: boom" {
		t.Fatalf("unexpected error text: %q", got)
	}
	if got := importStatusText(0, nil); got != "Controller log is empty" {
		t.Fatalf("unexpected empty text: %q", got)
	}
	if got := importStatusText(3, nil); got != "Fetched 3 entries" {
		t.Fatalf("unexpected count text: %q", got)
	}
}

func TestLogsTabRefreshesFromStore(t *testing.T) {
	app := fynetest.NewApp()
	t.Cleanup(app.Quit)

	store := domain.NewLogStore(10)
	store.Append(domain.DeviceLog{Tag: "NET", Level: protocol.LevelInfo, Message: "up", ReceivedAt: time.Now()})

	imports := 0
	hooks := syncHooks()
	tab := newLogsTab(store, func(context.Context) (int, error) {
		imports++
		store.Append(domain.DeviceLog{Tag: "NET", Level: protocol.LevelInfo, Message: "old", Source: domain.LogSourceHistory, ReceivedAt: time.Now()})

		return 1, nil
	}, hooks.RunAsync, hooks.RunOnUI)

	if len(tab.entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(tab.entries))
	}

	store.Append(domain.DeviceLog{Tag: "NET", Level: protocol.LevelError, Message: "down", ReceivedAt: time.Now()})
	tab.Refresh()
	if len(tab.entries) != 2 {
		t.Fatalf("expected refresh to pick up the new entry, got %d", len(tab.entries))
	}
	if tab.list.Length() != 2 {
		t.Fatalf("expected list length 2, got %d", tab.list.Length())
	}
	if imports != 0 {
		t.Fatalf("expected no import before the button is tapped")
	}
}
