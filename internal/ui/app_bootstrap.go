package ui

import (
	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"

	irrigoapp "github.com/irrigo/irrigo/internal/app"
	"github.com/irrigo/irrigo/internal/connectors"
)

var newFyneApp = func() fyne.App {
	return fyneapp.NewWithID("io.github.irrigo")
}

// Run blocks until the UI quits.
func Run(dep RuntimeDependencies) error {
	return runWithApp(dep, newFyneApp())
}

func runWithApp(dep RuntimeDependencies, fyApp fyne.App) error {
	if fyApp.Icon() == nil {
		fyApp.SetIcon(theme.HomeIcon())
	}
	appLogger.Info("starting UI runtime", "start_hidden", dep.Launch.StartHidden)

	window := fyApp.NewWindow("")
	window.Resize(fyne.NewSize(1000, 700))
	view := buildMainView(dep, window, resolveInitialConnStatus(dep))

	stopNotifications := startNotificationService(dep, fyApp, dep.Launch.StartHidden)
	stops := append([]func(){stopNotifications}, bindPresentationListeners(dep, view)...)

	window.SetContent(container.NewBorder(nil, nil, view.sidebar.left, nil, view.sidebar.rightStack))

	uiRuntime := newUIRuntime(fyApp, window, dep.Actions.OnVisibility, dep.Actions.OnQuit, stops...)
	if configureSystemTray(fyApp, uiRuntime.ShowWindow, dep.Actions.OnReconnect, uiRuntime.Quit) {
		uiRuntime.BindCloseIntercept()
	} else {
		window.SetCloseIntercept(uiRuntime.Quit)
	}

	uiRuntime.Run(dep.Launch.StartHidden)

	return nil
}

func resolveInitialConnStatus(dep RuntimeDependencies) connectors.ConnectionStatus {
	if status, ok := currentConnStatus(dep); ok {
		return status
	}

	return irrigoapp.ConnectionStatusFromConfig(dep.Data.Config.Connection)
}
