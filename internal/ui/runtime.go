package ui

import (
	"sync"

	"fyne.io/fyne/v2"
)

// uiRuntime owns the main window. Hiding the window to the tray puts the
// controller link in background mode and showing it brings the link back.
type uiRuntime struct {
	fyApp  fyne.App
	window fyne.Window

	stops        []func()
	onVisibility func(bool)
	onQuit       func()

	shutdownOnce sync.Once
}

func newUIRuntime(fyApp fyne.App, window fyne.Window, onVisibility func(bool), onQuit func(), stops ...func()) *uiRuntime {
	return &uiRuntime{
		fyApp:        fyApp,
		window:       window,
		stops:        stops,
		onVisibility: onVisibility,
		onQuit:       onQuit,
	}
}

func (r *uiRuntime) BindCloseIntercept() {
	if r.window == nil {
		return
	}
	r.window.SetCloseIntercept(func() {
		appLogger.Debug("main window close intercepted: hiding to tray")
		r.HideWindow()
	})
}

func (r *uiRuntime) ShowWindow() {
	if r.window == nil {
		return
	}
	r.window.Show()
	r.window.RequestFocus()
	r.setVisible(true)
}

func (r *uiRuntime) HideWindow() {
	if r.window == nil {
		return
	}
	r.window.Hide()
	r.setVisible(false)
}

func (r *uiRuntime) setVisible(visible bool) {
	if r.onVisibility != nil {
		r.onVisibility(visible)
	}
}

func (r *uiRuntime) Quit() {
	r.shutdownOnce.Do(func() {
		appLogger.Info("quitting UI runtime")
		r.stop()
		if r.fyApp != nil {
			r.fyApp.Quit()
		}
	})
}

func (r *uiRuntime) Run(startHidden bool) {
	if r.window != nil {
		r.window.Show()
		if startHidden {
			appLogger.Info("start hidden: main window goes to tray")
			r.HideWindow()
		}
	}
	if r.fyApp != nil {
		r.fyApp.Run()
	}
	appLogger.Info("UI runtime stopped")
	r.shutdownOnce.Do(func() {
		r.stop()
	})
}

func (r *uiRuntime) stop() {
	for _, stop := range r.stops {
		if stop != nil {
			stop()
		}
	}
	if r.onQuit != nil {
		r.onQuit()
	}
}
