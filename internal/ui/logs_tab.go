package ui

import (
	"context"
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/irrigo/irrigo/internal/domain"
)

const logImportTimeout = 30 * time.Second

type logsTab struct {
	widget.BaseWidget

	store   *domain.LogStore
	entries []domain.DeviceLog
	list    *widget.List
	status  *widget.Label
	follow  *widget.Check
	content fyne.CanvasObject
}

func newLogsTab(
	store *domain.LogStore,
	onImport func(ctx context.Context) (int, error),
	runAsync func(func()),
	runOnUI func(func()),
) *logsTab {
	tab := &logsTab{
		store:  store,
		status: widget.NewLabel(""),
		follow: widget.NewCheck("Follow", nil),
	}
	tab.follow.SetChecked(true)
	tab.list = widget.NewList(
		func() int {
			return len(tab.entries)
		},
		func() fyne.CanvasObject {
			label := widget.NewLabel("")
			label.Truncation = fyne.TextTruncateEllipsis
			label.TextStyle = fyne.TextStyle{Monospace: true}

			return label
		},
		func(id widget.ListItemID, object fyne.CanvasObject) {
			label, ok := object.(*widget.Label)
			if !ok || id < 0 || id >= len(tab.entries) {
				return
			}
			label.SetText(formatLogRow(tab.entries[id]))
		},
	)

	importButton := widget.NewButtonWithIcon("Fetch controller log", theme.DownloadIcon(), nil)
	importButton.OnTapped = func() {
		if onImport == nil {
			return
		}
		importButton.Disable()
		tab.status.SetText("Fetching...")
		runAsync(func() {
			ctx, cancel := context.WithTimeout(context.Background(), logImportTimeout)
			defer cancel()
			n, err := onImport(ctx)
			runOnUI(func() {
				importButton.Enable()
				tab.status.SetText(importStatusText(n, err))
			})
		})
	}
	if onImport == nil {
		importButton.Disable()
	}

	toolbar := container.NewHBox(importButton, tab.follow, tab.status)
	tab.content = container.NewBorder(toolbar, nil, nil, nil, tab.list)
	tab.ExtendBaseWidget(tab)
	tab.Refresh()

	return tab
}

func (t *logsTab) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(t.content)
}

func (t *logsTab) Refresh() {
	if t.store != nil {
		t.entries = t.store.Entries()
	}
	t.list.Refresh()
	if t.follow.Checked && len(t.entries) > 0 {
		t.list.ScrollToBottom()
	}
	t.BaseWidget.Refresh()
}

func formatLogRow(entry domain.DeviceLog) string {
	row := entry.ReceivedAt.Format(time.TimeOnly) + " " + entry.String()
	if entry.Source == domain.LogSourceHistory {
		row += " (history)"
	}

	return row
}

func importStatusText(n int, err error) string {
	if err != nil {
		return "Fetch failed: " + err.Error()
	}
	if n == 0 {
		return "Controller log is empty"
	}

	return fmt.Sprintf("Fetched %d entries", n)
}
