// Package protocol defines the JSON frames exchanged with the controller over the
// persistent connection.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind tags an inbound frame. The set is closed; anything else is dropped.
type Kind string

const (
	KindLog         Kind = "log"
	KindPing        Kind = "ping"
	KindPong        Kind = "pong"
	KindRelayUpdate Kind = "relayUpdate"
	KindDashboard   Kind = "dashboard"

	// Outbound only.
	KindPause  Kind = "pause"
	KindResume Kind = "resume"
)

var (
	ErrMissingKind = errors.New("frame kind is missing")
	ErrUnknownKind = errors.New("unknown frame kind")
	ErrBadPayload  = errors.New("invalid frame payload")
)

// ParseError describes an inbound payload that could not be classified.
type ParseError struct {
	Raw []byte
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse frame: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Frame is a classified inbound frame. Exactly one payload pointer matching Kind
// is set; heartbeat frames carry none.
type Frame struct {
	Kind      Kind
	Log       *LogEntry
	Relay     *RelayUpdate
	Dashboard *Dashboard
}

// IsHeartbeat reports whether the frame belongs to the liveness protocol.
func (f Frame) IsHeartbeat() bool {
	return f.Kind == KindPing || f.Kind == KindPong
}

// LogEntry is a single device log line.
type LogEntry struct {
	Tag     string `json:"tag"`
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

func (e LogEntry) String() string {
	return fmt.Sprintf("[%s] %s: %s", e.Tag, e.Level, e.Message)
}

// RelayUpdate reports the server-side activation window of one relay.
type RelayUpdate struct {
	Index       int
	Active      bool
	RemainingMs int64
}

type envelope struct {
	Type *string `json:"type"`
}

type relayUpdateWire struct {
	Index          *int   `json:"index"`
	Active         bool   `json:"active"`
	ActivationTime *int64 `json:"activationTime"`
	RemainingMs    *int64 `json:"remainingMs"`
}

// Classify parses a raw payload into a Frame. Every failure is a *ParseError.
func Classify(raw []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Frame{}, &ParseError{Raw: raw, Err: err}
	}
	if env.Type == nil || strings.TrimSpace(*env.Type) == "" {
		return Frame{}, &ParseError{Raw: raw, Err: ErrMissingKind}
	}

	kind := Kind(strings.TrimSpace(*env.Type))
	switch kind {
	case KindPing, KindPong:
		return Frame{Kind: kind}, nil
	case KindLog:
		var entry LogEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return Frame{}, &ParseError{Raw: raw, Err: fmt.Errorf("%w: %w", ErrBadPayload, err)}
		}

		return Frame{Kind: kind, Log: &entry}, nil
	case KindRelayUpdate:
		update, err := decodeRelayUpdate(raw)
		if err != nil {
			return Frame{}, &ParseError{Raw: raw, Err: err}
		}

		return Frame{Kind: kind, Relay: &update}, nil
	case KindDashboard:
		var dash Dashboard
		if err := json.Unmarshal(raw, &dash); err != nil {
			return Frame{}, &ParseError{Raw: raw, Err: fmt.Errorf("%w: %w", ErrBadPayload, err)}
		}

		return Frame{Kind: kind, Dashboard: &dash}, nil
	default:
		return Frame{}, &ParseError{Raw: raw, Err: fmt.Errorf("%w: %q", ErrUnknownKind, kind)}
	}
}

func decodeRelayUpdate(raw []byte) (RelayUpdate, error) {
	var wire relayUpdateWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return RelayUpdate{}, fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	if wire.Index == nil {
		return RelayUpdate{}, fmt.Errorf("%w: relay index is missing", ErrBadPayload)
	}
	if *wire.Index < 0 {
		return RelayUpdate{}, fmt.Errorf("%w: negative relay index %d", ErrBadPayload, *wire.Index)
	}

	update := RelayUpdate{Index: *wire.Index, Active: wire.Active}
	switch {
	case wire.RemainingMs != nil:
		update.RemainingMs = *wire.RemainingMs
	case wire.ActivationTime != nil:
		update.RemainingMs = *wire.ActivationTime * 1000
	}
	if update.RemainingMs < 0 {
		update.RemainingMs = 0
	}

	return update, nil
}
