package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	DefaultWebSocketPort = 80
	DefaultWebSocketPath = "/ws"

	wsHandshakeTimeout = 6 * time.Second
	wsWriteWait        = 10 * time.Second
	wsCloseWait        = time.Second
	wsOutboxSize       = 64
	wsMaxMessageSize   = 64 * 1024
)

var (
	ErrSocketClosed = errors.New("socket is closed")
	ErrOutboxFull   = errors.New("socket outbox is full")
)

// WebSocketTransport connects to the controller's websocket endpoint. Every
// connection of one transport carries the same id query parameter, so the
// controller recognizes a reconnecting client.
type WebSocketTransport struct {
	id     string
	mu     sync.Mutex
	host   string
	port   int
	path   string
	dialer websocket.Dialer
}

func NewWebSocketTransport(host string, port int, path string) *WebSocketTransport {
	if port == 0 {
		port = DefaultWebSocketPort
	}
	if path == "" {
		path = DefaultWebSocketPath
	}

	return &WebSocketTransport{
		id:   uuid.NewString(),
		host: host,
		port: port,
		path: path,
		dialer: websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: wsHandshakeTimeout,
		},
	}
}

func (t *WebSocketTransport) Name() string {
	return "websocket"
}

// ID is the connection id sent to the controller.
func (t *WebSocketTransport) ID() string {
	return t.id
}

// SetEndpoint retargets later connections. The connection id is kept.
func (t *WebSocketTransport) SetEndpoint(host string, port int, path string) {
	if port == 0 {
		port = DefaultWebSocketPort
	}
	if path == "" {
		path = DefaultWebSocketPath
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.host = host
	t.port = port
	t.path = path
}

func (t *WebSocketTransport) Host() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.host
}

func (t *WebSocketTransport) Target() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.host == "" {
		return ""
	}

	return t.endpoint("").String()
}

// URL returns the endpoint for a connection identified by id.
func (t *WebSocketTransport) URL(id string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.endpoint(id).String()
}

func (t *WebSocketTransport) endpoint(id string) *url.URL {
	u := &url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(t.host, strconv.Itoa(t.port)),
		Path:   t.path,
	}
	if id != "" {
		u.RawQuery = url.Values{"id": []string{id}}.Encode()
	}

	return u
}

func (t *WebSocketTransport) Open(ctx context.Context, events Events) Socket {
	target := t.URL(t.id)
	logger := socketLogger("websocket", "target", target, "conn_id", t.id)

	dialCtx, cancel := context.WithCancel(ctx)
	s := &wsSocket{
		events: events,
		outbox: make(chan []byte, wsOutboxSize),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	t.mu.Lock()
	host := t.host
	dialer := t.dialer
	t.mu.Unlock()

	go func() {
		if host == "" {
			logger.Warn("connect failed: host is empty")
			s.finish(errors.New("websocket host is empty"))

			return
		}
		logger.Info("connecting")
		conn, _, err := dialer.DialContext(dialCtx, target, nil)
		if err != nil {
			logger.Warn("connect failed", "error", err)
			s.finish(fmt.Errorf("dial websocket: %w", err))

			return
		}
		logger.Info("connected", "remote", conn.RemoteAddr().String())
		s.serve(conn, logger)
	}()

	return s
}

type wsSocket struct {
	events Events
	outbox chan []byte
	done   chan struct{}
	cancel context.CancelFunc

	closeOnce  sync.Once
	finishOnce sync.Once
	requested  atomic.Bool
}

func (s *wsSocket) Send(payload []byte) error {
	select {
	case <-s.done:
		return ErrSocketClosed
	default:
	}

	select {
	case s.outbox <- payload:
		return nil
	case <-s.done:
		return ErrSocketClosed
	default:
		return ErrOutboxFull
	}
}

// Close stops the socket. Frames already queued are flushed before the close
// handshake.
func (s *wsSocket) Close() error {
	s.closeOnce.Do(func() {
		s.requested.Store(true)
		close(s.done)
		s.cancel()
	})

	return nil
}

func (s *wsSocket) serve(conn *websocket.Conn, logger *slog.Logger) {
	if s.requested.Load() {
		_ = conn.Close()
		s.finish(nil)

		return
	}

	conn.SetReadLimit(wsMaxMessageSize)
	s.events.open()

	stop := make(chan struct{})
	go s.writePump(conn, stop, logger)

	var readErr error
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		logger.Debug("read message", "len", len(payload))
		s.events.message(payload)
	}
	close(stop)

	s.cancel()
	_ = conn.Close()
	if websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		logger.Info("closed by peer", "error", readErr)
	}
	s.finish(fmt.Errorf("read websocket: %w", readErr))
}

// writePump is the only writer on conn. When the socket is closed it flushes the
// outbox and performs the close handshake.
func (s *wsSocket) writePump(conn *websocket.Conn, stop <-chan struct{}, logger *slog.Logger) {
	write := func(payload []byte) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			logger.Warn("write message failed", "len", len(payload), "error", err)
			_ = conn.Close()

			return false
		}
		logger.Debug("write message", "len", len(payload))

		return true
	}

	for {
		select {
		case <-stop:
			return
		case <-s.done:
			if !s.flush(write) {
				return
			}
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsCloseWait))
			_ = conn.Close()

			return
		case payload := <-s.outbox:
			if !write(payload) {
				return
			}
		}
	}
}

func (s *wsSocket) flush(write func([]byte) bool) bool {
	for {
		select {
		case payload := <-s.outbox:
			if !write(payload) {
				return false
			}
		default:
			return true
		}
	}
}

// finish reports the end of the socket exactly once. A close the caller asked
// for is reported without an error.
func (s *wsSocket) finish(err error) {
	s.finishOnce.Do(func() {
		if s.requested.Load() {
			err = nil
		}
		s.events.close(err)
	})
}
