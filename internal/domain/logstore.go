package domain

import (
	"context"
	"sync"

	"github.com/irrigo/irrigo/internal/bus"
	"github.com/irrigo/irrigo/internal/connectors"
)

const DefaultLogCapacity = 1000

// LogStore keeps the most recent device log lines for the log view.
type LogStore struct {
	mu       sync.RWMutex
	capacity int
	entries  []DeviceLog
	changes  chan struct{}
}

func NewLogStore(capacity int) *LogStore {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}

	return &LogStore{
		capacity: capacity,
		changes:  make(chan struct{}, 1),
	}
}

// Load prepends history loaded at startup; entries are expected oldest first.
func (s *LogStore) Load(entries []DeviceLog) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make([]DeviceLog, 0, len(entries)+len(s.entries))
	merged = append(merged, entries...)
	merged = append(merged, s.entries...)
	s.entries = s.trim(merged)
	s.notify()
}

func (s *LogStore) Start(ctx context.Context, b bus.MessageBus) {
	sub := b.Subscribe(connectors.TopicDeviceLog)

	go func() {
		defer b.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-sub:
				if !ok {
					return
				}
				msg, ok := raw.(connectors.DeviceLog)
				if !ok {
					continue
				}
				s.Append(DeviceLogFromEntry(msg.Entry, LogSourceLive, msg.ReceivedAt))
			}
		}
	}()
}

func (s *LogStore) Append(entry DeviceLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = s.trim(append(s.entries, entry))
	s.notify()
}

// Entries returns a copy, oldest first.
func (s *LogStore) Entries() []DeviceLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DeviceLog, len(s.entries))
	copy(out, s.entries)

	return out
}

func (s *LogStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.notify()
}

func (s *LogStore) Changes() <-chan struct{} {
	return s.changes
}

func (s *LogStore) trim(entries []DeviceLog) []DeviceLog {
	if len(entries) <= s.capacity {
		return entries
	}

	return append([]DeviceLog(nil), entries[len(entries)-s.capacity:]...)
}

func (s *LogStore) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
