package visibility

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/irrigo/irrigo/internal/backoff"
	"github.com/irrigo/irrigo/internal/eventloop"
	"github.com/irrigo/irrigo/internal/link"
	"github.com/irrigo/irrigo/internal/transport"
)

type stubSocket struct {
	events transport.Events
	closed bool
}

func (s *stubSocket) Send([]byte) error { return nil }

func (s *stubSocket) Close() error {
	if !s.closed {
		s.closed = true
		s.events.OnClose(nil)
	}

	return nil
}

type stubTransport struct {
	sockets []*stubSocket
}

func (t *stubTransport) Name() string   { return "stub" }
func (t *stubTransport) Target() string { return "stub" }

func (t *stubTransport) Open(_ context.Context, events transport.Events) transport.Socket {
	s := &stubSocket{events: events}
	t.sockets = append(t.sockets, s)

	return s
}

func (t *stubTransport) live() int {
	n := 0
	for _, s := range t.sockets {
		if !s.closed {
			n++
		}
	}

	return n
}

type harness struct {
	clk   *eventloop.Manual
	tr    *stubTransport
	mgr   *link.Manager
	coord *Coordinator
}

func newHarness() *harness {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		clk: eventloop.NewManual(time.Unix(1_700_000_000, 0)),
		tr:  &stubTransport{},
	}
	h.mgr = link.New(h.clk, h.tr, link.DefaultConfig(), logger)
	h.coord = New(h.mgr, logger)
	h.mgr.SetForeground(h.coord.Foreground)

	return h
}

func (h *harness) establishLast() {
	h.tr.sockets[len(h.tr.sockets)-1].events.OnOpen()
}

func TestBackgroundThenForegroundLeavesOneConnection(t *testing.T) {
	h := newHarness()
	h.clk.Post(h.coord.OnForeground)
	h.establishLast()
	if h.mgr.State() != link.StateOpen {
		t.Fatalf("expected open link, got %s", h.mgr.State())
	}

	// Both events are handled in the same loop turn with no time elapsing.
	h.clk.Post(func() {
		h.coord.OnBackground()
		h.coord.OnForeground()
	})
	h.establishLast()

	if h.tr.live() != 1 {
		t.Fatalf("expected exactly one live connection, got %d", h.tr.live())
	}
	if h.mgr.State() != link.StateOpen {
		t.Fatalf("expected link open after toggle, got %s", h.mgr.State())
	}
}

func TestRepeatedTogglingWhileConnecting(t *testing.T) {
	h := newHarness()
	h.clk.Post(func() {
		h.coord.OnForeground()
		for i := 0; i < 5; i++ {
			h.coord.OnBackground()
			h.coord.OnForeground()
		}
	})

	if h.tr.live() != 1 {
		t.Fatalf("expected one pending connection, got %d", h.tr.live())
	}
	if h.mgr.State() != link.StateConnecting {
		t.Fatalf("expected connecting, got %s", h.mgr.State())
	}
}

func TestBackgroundSuspendsOpenLink(t *testing.T) {
	h := newHarness()
	h.clk.Post(h.coord.OnForeground)
	h.establishLast()

	h.clk.Post(h.coord.OnBackground)
	if h.mgr.State() != link.StateSuspended {
		t.Fatalf("expected suspended, got %s", h.mgr.State())
	}
	if h.coord.Foreground() {
		t.Fatalf("expected background to be recorded")
	}
	if h.tr.live() != 0 {
		t.Fatalf("expected no live connection while backgrounded, got %d", h.tr.live())
	}
}

func TestForegroundRunsDeferredReattempt(t *testing.T) {
	h := newHarness()
	h.clk.Post(h.coord.OnForeground)
	h.establishLast()

	h.clk.Post(func() { h.coord.foreground = false })
	h.tr.sockets[0].closed = true
	h.tr.sockets[0].events.OnClose(errors.New("reset"))
	if h.mgr.State() != link.StateBackoff {
		t.Fatalf("expected backoff, got %s", h.mgr.State())
	}

	h.clk.Advance(backoff.Default().Max)
	if !h.mgr.Deferred() || len(h.tr.sockets) != 1 {
		t.Fatalf("expected reattempt to wait for foreground")
	}

	h.clk.Post(h.coord.OnForeground)
	if h.mgr.State() != link.StateConnecting || len(h.tr.sockets) != 2 {
		t.Fatalf("expected deferred reattempt on foreground, state=%s sockets=%d", h.mgr.State(), len(h.tr.sockets))
	}
}

func TestForegroundRestartsFailedLink(t *testing.T) {
	h := newHarness()
	h.clk.Post(h.coord.OnForeground)

	for i := 0; i <= backoff.Default().MaxAttempts; i++ {
		s := h.tr.sockets[len(h.tr.sockets)-1]
		s.closed = true
		s.events.OnClose(errors.New("refused"))
		h.clk.Advance(backoff.Default().Max)
	}
	if h.mgr.State() != link.StateFailed {
		t.Fatalf("expected failed, got %s", h.mgr.State())
	}

	h.clk.Post(h.coord.OnBackground)
	h.clk.Post(h.coord.OnForeground)
	if h.mgr.State() != link.StateConnecting {
		t.Fatalf("expected foreground to restart a failed link, got %s", h.mgr.State())
	}
	if h.mgr.Attempt() != 0 {
		t.Fatalf("expected attempts reset, got %d", h.mgr.Attempt())
	}
}
