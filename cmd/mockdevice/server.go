package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"

	"github.com/irrigo/irrigo/internal/deviceapi"
	"github.com/irrigo/irrigo/internal/protocol"
)

const (
	clientOutboxSize = 32
	maxBodyBytes     = 64 * 1024
	writeWait        = 5 * time.Second
)

type serverOptions struct {
	// IgnorePings makes the mock stop answering heartbeats, so clients see a
	// dead link while the socket stays open.
	IgnorePings bool
}

type server struct {
	dev    *device
	opts   serverOptions
	logger *slog.Logger
	now    func() time.Time

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	paused atomic.Bool
	done   chan struct{}
	once   sync.Once
}

func newServer(dev *device, opts serverOptions, logger *slog.Logger) *server {
	return &server{
		dev:    dev,
		opts:   opts,
		logger: logger,
		now:    time.Now,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

func (s *server) routes() http.Handler {
	r := httprouter.New()
	r.GET("/api/config", s.getConfig)
	r.POST("/api/config", s.postConfig)
	r.GET("/api/defaultConfig", s.getDefaultConfig)
	r.GET("/api/resetToDefault", s.resetToDefault)
	r.GET("/api/setup", s.getSetup)
	r.POST("/api/setup", s.postSetup)
	r.GET("/api/sensorData", s.getSensorData)
	r.POST("/api/relay", s.postRelay)
	r.GET("/api/logs", s.getLogs)
	r.GET("/ws", s.serveWS)

	return r
}

func (s *server) getConfig(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.dev.Config())
}

func (s *server) getDefaultConfig(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.dev.DefaultConfig())
}

func (s *server) postConfig(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		Config *deviceapi.ControllerConfig `json:"config"`
	}
	if err := readJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.Config == nil {
		http.Error(w, "config is missing", http.StatusBadRequest)
		return
	}
	if err := s.dev.SaveConfig(*body.Config); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *server) resetToDefault(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.dev.ResetToDefault()
	w.WriteHeader(http.StatusOK)
}

func (s *server) getSetup(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.dev.Setup())
}

func (s *server) postSetup(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var setup deviceapi.Setup
	if err := readJSON(r, &setup); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.dev.SaveSetup(setup); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *server) getSensorData(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.dev.Dashboard(s.now()))
}

func (s *server) postRelay(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Relay  *int `json:"relay"`
		Active bool `json:"active"`
	}
	if err := readJSON(r, &req); err != nil || req.Relay == nil {
		writeJSON(w, http.StatusBadRequest, deviceapi.RelayResult{Message: "relay index is required"})
		return
	}

	update, err := s.dev.SetRelay(*req.Relay, req.Active, s.now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, deviceapi.RelayResult{RelayIndex: *req.Relay, Message: err.Error()})
		return
	}
	s.broadcast(encodeRelayUpdate(update))
	writeJSON(w, http.StatusOK, deviceapi.RelayResult{Success: true, RelayIndex: *req.Relay, Message: "ok"})
}

func (s *server) getLogs(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	entry, ok := s.dev.PopLog()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *server) serveWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	id := r.URL.Query().Get("id")
	if _, err := uuid.Parse(id); err != nil {
		// Older clients connect without an id.
		id = uuid.NewString()
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{
		id:   id,
		conn: conn,
		send: make(chan []byte, clientOutboxSize),
		done: make(chan struct{}),
	}
	s.register(c)
	s.logger.Info("client connected", "id", id, "remote", r.RemoteAddr)

	go s.writePump(c)
	s.readPump(c)

	s.unregister(c)
	s.logger.Info("client disconnected", "id", id)
}

func (s *server) readPump(c *client) {
	defer c.close()
	conn := c.conn
	conn.SetReadLimit(maxBodyBytes)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleFrame(c, payload)
	}
}

func (s *server) handleFrame(c *client, payload []byte) {
	var cmd struct {
		Type   protocol.Kind `json:"type"`
		Relay  *int          `json:"relay"`
		Active bool          `json:"active"`
	}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		s.logger.Warn("bad client frame", "id", c.id, "error", err)
		return
	}

	switch {
	case cmd.Type == protocol.KindPing:
		if s.opts.IgnorePings {
			return
		}
		c.enqueue(encodeFrame(typedFrame{Type: protocol.KindPong}))
	case cmd.Type == protocol.KindPong:
	case cmd.Type == protocol.KindPause:
		c.paused.Store(true)
		s.logger.Info("client paused", "id", c.id)
	case cmd.Type == protocol.KindResume:
		c.paused.Store(false)
		s.logger.Info("client resumed", "id", c.id)
		c.enqueue(encodeDashboard(s.dev.Dashboard(s.now())))
	case cmd.Type == "" && cmd.Relay != nil:
		update, err := s.dev.SetRelay(*cmd.Relay, cmd.Active, s.now())
		if err != nil {
			c.enqueue(encodeLog(s.dev.Log(protocol.LevelError, "RELAY", err.Error())))
			// The unchanged state lets the client drop its pending toggle.
			current := s.dev.Dashboard(s.now())
			if *cmd.Relay >= 0 && *cmd.Relay < len(current.Relays) {
				rs := current.Relays[*cmd.Relay]
				c.enqueue(encodeRelayUpdate(protocol.RelayUpdate{Index: *cmd.Relay, Active: rs.Active, RemainingMs: rs.ActivationTime * 1000}))
			}

			return
		}
		s.broadcast(encodeRelayUpdate(update))
	default:
		s.logger.Warn("unknown client frame", "id", c.id, "type", cmd.Type)
	}
}

func (s *server) writePump(c *client) {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Warn("write to client failed", "id", c.id, "error", err)
				c.close()

				return
			}
		}
	}
}

func (c *client) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	case <-c.done:
	default:
		// A client that cannot keep up misses frames, like on the real controller.
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (s *server) register(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
}

func (s *server) unregister(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
}

func (s *server) snapshot() []*client {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		out = append(out, c)
	}

	return out
}

// broadcast sends payload to every client that is not paused.
func (s *server) broadcast(payload []byte) {
	for _, c := range s.snapshot() {
		if c.paused.Load() {
			continue
		}
		c.enqueue(payload)
	}
}

// closeAll drops every client without a close handshake.
func (s *server) closeAll() {
	for _, c := range s.snapshot() {
		c.close()
	}
}

// tick advances the simulation and streams what changed.
func (s *server) tick(now time.Time, publishDashboard bool, logLine bool) {
	for _, u := range s.dev.Step(now) {
		s.broadcast(encodeRelayUpdate(u))
	}
	if logLine {
		d := s.dev.Dashboard(now)
		entry := s.dev.Log(protocol.LevelDebug, "SENSOR", formatReading(d))
		s.broadcast(encodeLog(entry))
	}
	if publishDashboard {
		s.broadcast(encodeDashboard(s.dev.Dashboard(now)))
	}
}

func formatReading(d protocol.Dashboard) string {
	return fmt.Sprintf("reading t=%.1f p=%.1f", d.Temperature, d.Pressure)
}

func readJSON(r *http.Request, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.Wrap(err, "decode body")
	}

	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
