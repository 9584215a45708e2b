package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

const (
	DefaultSerialBaud = 115200

	defaultSerialReadTimeout = 300 * time.Millisecond
)

// SerialTransport talks to a controller attached over USB serial using
// newline-delimited JSON frames.
type SerialTransport struct {
	mu       sync.Mutex
	portName string
	baudRate int
}

func NewSerialTransport(portName string, baudRate int) *SerialTransport {
	if baudRate == 0 {
		baudRate = DefaultSerialBaud
	}

	return &SerialTransport{
		portName: portName,
		baudRate: baudRate,
	}
}

func (t *SerialTransport) Name() string {
	return "serial"
}

func (t *SerialTransport) SetConfig(portName string, baudRate int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.portName = portName
	t.baudRate = baudRate
}

func (t *SerialTransport) Target() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.portName == "" {
		return ""
	}

	return t.portName + "@" + strconv.Itoa(t.baudRate)
}

// Ports lists the serial ports available on this machine.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}

	return ports, nil
}

func (t *SerialTransport) Open(ctx context.Context, events Events) Socket {
	t.mu.Lock()
	portName, baudRate := t.portName, t.baudRate
	t.mu.Unlock()

	logger := socketLogger("serial", "port", portName, "baud", baudRate)
	s := &serialSocket{events: events, done: make(chan struct{})}

	go func() {
		if err := ctx.Err(); err != nil {
			s.finish(err)
			return
		}
		if portName == "" {
			logger.Warn("connect failed: serial port is empty")
			s.finish(errors.New("serial port is empty"))

			return
		}
		if baudRate <= 0 {
			s.finish(fmt.Errorf("invalid serial baud rate: %d", baudRate))
			return
		}

		logger.Info("connecting")
		port, err := serial.Open(portName, &serial.Mode{BaudRate: baudRate})
		if err != nil {
			logger.Warn("connect failed", "error", err)
			s.finish(fmt.Errorf("open serial port %q: %w", portName, err))

			return
		}
		if err := port.SetReadTimeout(defaultSerialReadTimeout); err != nil {
			_ = port.Close()
			s.finish(fmt.Errorf("set serial read timeout: %w", err))

			return
		}
		logger.Info("connected")
		s.serve(ctx, port)
	}()

	return s
}

type serialSocket struct {
	events Events
	done   chan struct{}

	mu         sync.Mutex
	port       serial.Port
	writeMu    sync.Mutex
	closeOnce  sync.Once
	finishOnce sync.Once
	requested  atomic.Bool
}

func (s *serialSocket) Send(payload []byte) error {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil || s.requested.Load() {
		return ErrSocketClosed
	}

	line, err := encodeLine(payload)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := writeFull(s.done, port, line); err != nil {
		return fmt.Errorf("write serial frame: %w", err)
	}

	return nil
}

func (s *serialSocket) Close() error {
	s.closeOnce.Do(func() {
		s.requested.Store(true)
		close(s.done)
	})

	return nil
}

func (s *serialSocket) serve(ctx context.Context, port serial.Port) {
	s.mu.Lock()
	s.port = port
	s.mu.Unlock()

	if s.requested.Load() {
		_ = port.Close()
		s.finish(nil)

		return
	}
	s.events.open()

	var (
		framer  lineFramer
		buf     = make([]byte, 1024)
		readErr error
	)
	for !s.requested.Load() {
		if err := ctx.Err(); err != nil {
			readErr = err
			break
		}
		// Read returns 0, nil when the read timeout elapses.
		n, err := port.Read(buf)
		if err != nil {
			readErr = err
			break
		}
		for _, line := range framer.feed(buf[:n]) {
			s.events.message(line)
		}
	}

	s.writeMu.Lock()
	_ = port.Close()
	s.writeMu.Unlock()
	if readErr != nil {
		s.finish(fmt.Errorf("read serial: %w", readErr))
		return
	}
	s.finish(nil)
}

func (s *serialSocket) finish(err error) {
	s.finishOnce.Do(func() {
		if s.requested.Load() {
			err = nil
		}
		s.events.close(err)
	})
}

func writeFull(done <-chan struct{}, w io.Writer, buf []byte) error {
	written := 0
	for written < len(buf) {
		select {
		case <-done:
			return ErrSocketClosed
		default:
		}
		n, err := w.Write(buf[written:])
		if err != nil {
			return err
		}
		written += n
	}

	return nil
}
