package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"

	irrigoapp "github.com/irrigo/irrigo/internal/app"
)

func configureSystemTray(fyApp fyne.App, show, reconnect, quit func()) bool {
	desk, ok := fyApp.(desktop.App)
	if !ok {
		return false
	}

	icon := fyApp.Icon()
	if icon == nil {
		icon = theme.HomeIcon()
	}
	desk.SetSystemTrayIcon(icon)
	desk.SetSystemTrayMenu(fyne.NewMenu(irrigoapp.Name,
		fyne.NewMenuItem("Show", func() {
			appLogger.Debug("system tray show action invoked")
			show()
		}),
		fyne.NewMenuItem("Reconnect", func() {
			appLogger.Debug("system tray reconnect action invoked")
			if reconnect != nil {
				reconnect()
			}
		}),
		fyne.NewMenuItem("Quit", func() {
			appLogger.Debug("system tray quit action invoked")
			quit()
		}),
	))

	return true
}
