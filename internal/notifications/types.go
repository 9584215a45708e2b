package notifications

import "strings"

// Payload is a generic user-facing notification payload.
type Payload struct {
	Title   string
	Content string
}

// Normalized trims the payload and reports whether there is anything to show.
func (p Payload) Normalized() (Payload, bool) {
	out := Payload{
		Title:   strings.TrimSpace(p.Title),
		Content: strings.TrimSpace(p.Content),
	}

	return out, out.Title != "" || out.Content != ""
}

// Sender sends notifications using a platform-specific backend.
type Sender interface {
	Send(payload Payload)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(Payload)

func (f SenderFunc) Send(p Payload) {
	f(p)
}
