package ui

import (
	"context"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"

	"github.com/irrigo/irrigo/internal/bus"
	"github.com/irrigo/irrigo/internal/config"
	"github.com/irrigo/irrigo/internal/connectors"
	"github.com/irrigo/irrigo/internal/domain"
)

type DataDependencies struct {
	Config            config.AppConfig
	CurrentConfig     func() config.AppConfig
	Bus               bus.MessageBus
	LogStore          *domain.LogStore
	DashboardStore    *domain.DashboardStore
	CurrentConnStatus func() (connectors.ConnectionStatus, bool)
}

type ActionDependencies struct {
	OnSave       func(cfg config.AppConfig) error
	OnClearDB    func() error
	OnReconnect  func()
	OnSetRelay   func(index int, active bool)
	OnVisibility func(foreground bool)
	OnImportLogs func(ctx context.Context) (int, error)
	Controller   func() (ControllerAPI, error)
	OnQuit       func()
}

type UIHooks struct {
	RunOnUI         func(func())
	RunAsync        func(func())
	ShowConfirm     func(title, message string, onConfirm func(bool), window fyne.Window)
}

type LaunchOptions struct {
	StartHidden bool
}

type RuntimeDependencies struct {
	Data    DataDependencies
	Actions ActionDependencies
	UIHooks UIHooks
	Launch  LaunchOptions
}

func asyncHooks(dep RuntimeDependencies) (runAsync func(func()), runOnUI func(func())) {
	runAsync = dep.UIHooks.RunAsync
	if runAsync == nil {
		runAsync = func(fn func()) {
			go fn()
		}
	}
	runOnUI = dep.UIHooks.RunOnUI
	if runOnUI == nil {
		runOnUI = fyne.Do
	}

	return runAsync, runOnUI
}

func confirmHook(dep RuntimeDependencies) func(title, message string, onConfirm func(bool), window fyne.Window) {
	if dep.UIHooks.ShowConfirm != nil {
		return dep.UIHooks.ShowConfirm
	}

	return dialog.ShowConfirm
}
