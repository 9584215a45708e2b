package ui

import (
	"context"
	"log/slog"
	"sync/atomic"

	"fyne.io/fyne/v2"

	irrigoapp "github.com/irrigo/irrigo/internal/app"
	"github.com/irrigo/irrigo/internal/config"
)

// startNotificationService tracks window focus for notification gating. Gaining
// focus also counts as the window being visible again.
func startNotificationService(dep RuntimeDependencies, fyApp fyne.App, startHidden bool) func() {
	var appFocused atomic.Bool
	appFocused.Store(!startHidden)
	fyApp.Lifecycle().SetOnEnteredForeground(func() {
		appFocused.Store(true)
		if dep.Actions.OnVisibility != nil {
			dep.Actions.OnVisibility(true)
		}
	})
	fyApp.Lifecycle().SetOnExitedForeground(func() {
		appFocused.Store(false)
	})

	currentConfig := dep.Data.CurrentConfig
	if currentConfig == nil {
		cfg := dep.Data.Config
		currentConfig = func() config.AppConfig { return cfg }
	}

	notificationsCtx, stopNotifications := context.WithCancel(context.Background())
	notificationService := irrigoapp.NewNotificationService(
		dep.Data.Bus,
		currentConfig,
		appFocused.Load,
		newFyneNotificationSender(fyApp),
		slog.With("component", "ui.notifications"),
	)
	notificationService.Start(notificationsCtx)

	return stopNotifications
}
