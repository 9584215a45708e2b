// Package router classifies inbound payloads and dispatches them to consumers.
package router

import (
	"errors"
	"log/slog"

	"github.com/irrigo/irrigo/internal/protocol"
)

// Handler consumes one classified frame.
type Handler func(frame protocol.Frame)

// Router is the single dispatch point for inbound frames. Heartbeat frames go to
// the liveness hook and are never forwarded; every other kind reaches at most one
// registered handler. Malformed payloads are reported and dropped.
type Router struct {
	logger       *slog.Logger
	handlers     map[protocol.Kind]Handler
	heartbeat    func(protocol.Frame)
	onParseError func(*protocol.ParseError)
}

func New(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default().With("component", "router")
	}

	return &Router{
		logger:   logger,
		handlers: make(map[protocol.Kind]Handler),
	}
}

// Handle registers h for kind, replacing any previous handler. Heartbeat kinds
// cannot be registered.
func (r *Router) Handle(kind protocol.Kind, h Handler) {
	if kind == protocol.KindPing || kind == protocol.KindPong {
		r.logger.Warn("heartbeat kinds are not routable", "kind", kind)
		return
	}
	if h == nil {
		delete(r.handlers, kind)
		return
	}
	r.handlers[kind] = h
}

// SetHeartbeat installs the liveness hook that receives ping/pong frames.
func (r *Router) SetHeartbeat(h func(protocol.Frame)) {
	r.heartbeat = h
}

// OnParseError installs an observer for dropped payloads.
func (r *Router) OnParseError(h func(*protocol.ParseError)) {
	r.onParseError = h
}

// Route classifies raw and dispatches it. The returned error is informational;
// the caller keeps the link up regardless.
func (r *Router) Route(raw []byte) error {
	frame, err := protocol.Classify(raw)
	if err != nil {
		var parseErr *protocol.ParseError
		if errors.As(err, &parseErr) && r.onParseError != nil {
			r.onParseError(parseErr)
		}
		r.logger.Warn("dropping inbound frame", "len", len(raw), "error", err)

		return err
	}

	if frame.IsHeartbeat() {
		if r.heartbeat != nil {
			r.heartbeat(frame)
		}

		return nil
	}

	h, ok := r.handlers[frame.Kind]
	if !ok {
		r.logger.Debug("no handler for frame", "kind", frame.Kind)
		return nil
	}
	h(frame)

	return nil
}
