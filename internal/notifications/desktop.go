package notifications

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

// DesktopSender shows notifications through the OS notification service. It is
// used by headless binaries that have no fyne app to route through.
type DesktopSender struct {
	appName string
	notify  func(title, message string, icon any) error
	logger  *slog.Logger
}

func NewDesktopSender(appName string, logger *slog.Logger) *DesktopSender {
	if logger == nil {
		logger = slog.Default().With("component", "notifications.desktop")
	}
	if appName != "" {
		beeep.AppName = appName
	}

	return &DesktopSender{
		appName: appName,
		notify:  beeep.Notify,
		logger:  logger,
	}
}

func (s *DesktopSender) Send(payload Payload) {
	if s == nil || s.notify == nil {
		return
	}
	p, ok := payload.Normalized()
	if !ok {
		return
	}
	title := p.Title
	if title == "" {
		title = s.appName
	}
	if err := s.notify(title, p.Content, ""); err != nil {
		s.logger.Warn("desktop notification failed", "title", title, "error", err)
	}
}
