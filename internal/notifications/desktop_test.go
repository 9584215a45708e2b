package notifications

import (
	"errors"
	"io"
	"log/slog"
	"testing"
)

func TestDesktopSenderSkipsEmptyPayloads(t *testing.T) {
	calls := 0
	s := &DesktopSender{
		appName: "irrigo",
		notify: func(string, string, any) error {
			calls++
			return nil
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	s.Send(Payload{Title: "  ", Content: "\n"})
	if calls != 0 {
		t.Fatalf("expected empty payload to be dropped, got %d calls", calls)
	}
}

func TestDesktopSenderFallsBackToAppNameTitle(t *testing.T) {
	var gotTitle, gotMessage string
	s := &DesktopSender{
		appName: "irrigo",
		notify: func(title, message string, _ any) error {
			gotTitle, gotMessage = title, message
			return errors.New("no notification daemon")
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	s.Send(Payload{Content: " Water level low "})
	if gotTitle != "irrigo" {
		t.Fatalf("expected app name title, got %q", gotTitle)
	}
	if gotMessage != "Water level low" {
		t.Fatalf("expected trimmed content, got %q", gotMessage)
	}
}
