package ui

import "github.com/irrigo/irrigo/internal/connectors"

func bindPresentationListeners(dep RuntimeDependencies, view mainView) []func() {
	_, runOnUI := asyncHooks(dep)

	appLogger.Debug("starting UI event listeners")
	stops := []func(){
		startUIEventListeners(
			dep.Data.Bus,
			func(status connectors.ConnectionStatus) {
				runOnUI(func() {
					view.connStatusPresenter.Set(status)
				})
			},
			func(failure connectors.ParseFailure) {
				appLogger.Warn("dropped malformed controller frame", "error", failure.Err, "raw", failure.Raw)
			},
		),
	}
	if status, ok := currentConnStatus(dep); ok {
		view.connStatusPresenter.Set(status)
	}

	if dep.Data.DashboardStore != nil {
		stops = append(stops, startChangeListener("dashboard", dep.Data.DashboardStore.Changes(), func() {
			runOnUI(view.dashboard.Refresh)
		}))
	}
	if dep.Data.LogStore != nil {
		stops = append(stops, startChangeListener("logs", dep.Data.LogStore.Changes(), func() {
			runOnUI(view.logs.Refresh)
		}))
	}

	return stops
}

func currentConnStatus(dep RuntimeDependencies) (connectors.ConnectionStatus, bool) {
	if dep.Data.CurrentConnStatus == nil {
		return connectors.ConnectionStatus{}, false
	}

	return dep.Data.CurrentConnStatus()
}

