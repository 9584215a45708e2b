package ui

import (
	irrigoapp "github.com/irrigo/irrigo/internal/app"
)

func BuildRuntimeDependencies(rt *irrigoapp.Runtime, launch LaunchOptions, onQuit func()) RuntimeDependencies {
	dep := RuntimeDependencies{
		Launch: launch,
		Actions: ActionDependencies{
			OnQuit: onQuit,
		},
	}

	if rt == nil {
		return dep
	}

	dep.Data = DataDependencies{
		Config:            rt.CurrentConfig(),
		CurrentConfig:     rt.CurrentConfig,
		Bus:               rt.Core.Bus,
		LogStore:          rt.Domain.LogStore,
		DashboardStore:    rt.Domain.DashboardStore,
		CurrentConnStatus: rt.CurrentConnStatus,
	}

	dep.Actions.OnSave = rt.SaveAndApplyConfig
	dep.Actions.OnClearDB = rt.ClearDatabase
	dep.Actions.OnReconnect = rt.Reconnect
	dep.Actions.OnSetRelay = rt.SetRelay
	dep.Actions.OnVisibility = rt.SetForeground
	dep.Actions.OnImportLogs = rt.ImportDeviceLogs
	dep.Actions.Controller = func() (ControllerAPI, error) {
		client, err := rt.DeviceAPI()
		if err != nil {
			return nil, err
		}

		return client, nil
	}

	return dep
}
