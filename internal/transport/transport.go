package transport

import "context"

// Events are the callbacks a transport reports on. They may be invoked from any
// goroutine. OnClose is invoked exactly once per Open, including when the
// connection could not be established; a Close requested by the caller reports
// a nil error.
type Events struct {
	OnOpen    func()
	OnMessage func(payload []byte)
	OnClose   func(err error)
}

// Socket is one live connection attempt returned by Transport.Open.
type Socket interface {
	Send(payload []byte) error
	Close() error
}

// Transport opens message-oriented connections to the controller. Open must not
// block on network I/O; establishment is reported through Events.
type Transport interface {
	Name() string
	Target() string
	Open(ctx context.Context, events Events) Socket
}

func (e Events) open() {
	if e.OnOpen != nil {
		e.OnOpen()
	}
}

func (e Events) message(payload []byte) {
	if e.OnMessage != nil {
		e.OnMessage(payload)
	}
}

func (e Events) close(err error) {
	if e.OnClose != nil {
		e.OnClose(err)
	}
}
