package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/irrigo/irrigo/internal/connectors"
)

type mainView struct {
	sidebar             sidebarLayout
	dashboard           *dashboardTab
	logs                *logsTab
	connStatusPresenter *connectionStatusPresenter
}

func buildMainView(dep RuntimeDependencies, window fyne.Window, initialStatus connectors.ConnectionStatus) mainView {
	runAsync, runOnUI := asyncHooks(dep)

	settingsConnStatus := widget.NewLabel("")
	settingsConnStatus.Truncation = fyne.TextTruncateEllipsis
	connStatusPresenter := newConnectionStatusPresenter(window, settingsConnStatus, initialStatus, dep.Actions.OnReconnect)

	dashboard := newDashboardTab(dep.Data.DashboardStore, dep.Actions.OnSetRelay)
	logs := newLogsTab(dep.Data.LogStore, dep.Actions.OnImportLogs, runAsync, runOnUI)
	controller := newControllerTab(dep, window)
	settings := newSettingsTab(dep, settingsConnStatus, connStatusPresenter.ReconnectButton(), window)

	sidebar := buildSidebarLayout([]sidebarTab{
		{name: "Dashboard", icon: theme.HomeIcon(), content: dashboard},
		{name: "Logs", icon: theme.ListIcon(), content: logs},
		{name: "Controller", icon: theme.DocumentCreateIcon(), content: controller},
		{name: "App", icon: theme.SettingsIcon(), content: settings},
	}, connStatusPresenter.SidebarIcon())

	return mainView{
		sidebar:             sidebar,
		dashboard:           dashboard,
		logs:                logs,
		connStatusPresenter: connStatusPresenter,
	}
}
