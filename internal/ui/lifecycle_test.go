package ui

import (
	"testing"

	fynetest "fyne.io/fyne/v2/test"

	"github.com/irrigo/irrigo/internal/config"
)

func TestStartNotificationServiceRegistersLifecycleHooks(t *testing.T) {
	base := fynetest.NewApp()
	t.Cleanup(base.Quit)

	lifecycle := &lifecycleSpy{}
	app := &lifecycleAppSpy{
		App:       base,
		lifecycle: lifecycle,
	}
	var visibility []bool
	dep := RuntimeDependencies{
		Data: DataDependencies{
			CurrentConfig: config.Default,
		},
		Actions: ActionDependencies{
			OnVisibility: func(v bool) { visibility = append(visibility, v) },
		},
	}

	stop := startNotificationService(dep, app, true)
	if stop == nil {
		t.Fatalf("expected notification stop function")
	}
	if lifecycle.onEnteredForeground == nil {
		t.Fatalf("expected on-entered-foreground hook to be registered")
	}
	if lifecycle.onExitedForeground == nil {
		t.Fatalf("expected on-exited-foreground hook to be registered")
	}

	lifecycle.onEnteredForeground()
	lifecycle.onExitedForeground()
	if len(visibility) != 1 || !visibility[0] {
		t.Fatalf("expected focus gain to report foreground only, got %v", visibility)
	}
	stop()
	stop()
}
