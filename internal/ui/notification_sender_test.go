package ui

import (
	"testing"

	"fyne.io/fyne/v2"
	fynetest "fyne.io/fyne/v2/test"

	"github.com/irrigo/irrigo/internal/notifications"
)

type recordingNotificationApp struct {
	fyne.App
	sent []*fyne.Notification
}

func (a *recordingNotificationApp) SendNotification(n *fyne.Notification) {
	a.sent = append(a.sent, n)
}

func TestFyneNotificationSender(t *testing.T) {
	app := &recordingNotificationApp{App: fynetest.NewApp()}
	sender := newFyneNotificationSender(app)
	sender.do = func(f func()) { f() }

	sender.Send(notifications.Payload{Content: "  Controller link lost  "})
	sender.Send(notifications.Payload{Title: " ", Content: " "})
	sender.Send(notifications.Payload{Title: "Low water", Content: "Refill the reservoir"})

	if len(app.sent) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(app.sent))
	}
	if app.sent[0].Title != defaultNotificationTitle || app.sent[0].Content != "Controller link lost" {
		t.Fatalf("unexpected first notification: %+v", *app.sent[0])
	}
	if app.sent[1].Title != "Low water" {
		t.Fatalf("expected explicit title to be kept, got %q", app.sent[1].Title)
	}
}
