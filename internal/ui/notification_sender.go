package ui

import (
	"fyne.io/fyne/v2"

	"github.com/irrigo/irrigo/internal/notifications"
)

const defaultNotificationTitle = "Irrigo"

// fyneNotificationSender posts notifications through the fyne app. Sends are
// marshalled onto the fyne thread because they arrive from bus goroutines.
type fyneNotificationSender struct {
	app fyne.App
	do  func(func())
}

func newFyneNotificationSender(app fyne.App) *fyneNotificationSender {
	return &fyneNotificationSender{app: app, do: fyne.Do}
}

func (s *fyneNotificationSender) Send(payload notifications.Payload) {
	if s == nil || s.app == nil {
		return
	}
	p, ok := payload.Normalized()
	if !ok {
		return
	}
	title := p.Title
	if title == "" {
		title = defaultNotificationTitle
	}
	n := fyne.NewNotification(title, p.Content)

	s.do(func() {
		s.app.SendNotification(n)
	})
}
