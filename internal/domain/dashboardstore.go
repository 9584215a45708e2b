package domain

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/irrigo/irrigo/internal/bus"
	"github.com/irrigo/irrigo/internal/connectors"
	"github.com/irrigo/irrigo/internal/protocol"
)

// DashboardStore projects dashboard, relay and countdown events into the state
// the dashboard view renders.
type DashboardStore struct {
	mu        sync.RWMutex
	dashboard protocol.Dashboard
	updatedAt time.Time
	relays    map[int]RelayView
	changes   chan struct{}
}

func NewDashboardStore() *DashboardStore {
	return &DashboardStore{
		relays:  make(map[int]RelayView),
		changes: make(chan struct{}, 1),
	}
}

func (s *DashboardStore) Start(ctx context.Context, b bus.MessageBus) {
	topics := []string{
		connectors.TopicDashboard,
		connectors.TopicRelayUpdate,
		connectors.TopicCountdown,
		connectors.TopicRelayCommandResult,
	}
	sub := b.Subscribe(topics...)

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
				switch msg := raw.(type) {
				case connectors.DashboardUpdate:
					s.ApplyDashboard(msg.Dashboard, msg.ReceivedAt)
				case protocol.RelayUpdate:
					s.ApplyRelayUpdate(msg)
				case connectors.CountdownTick:
					s.ApplyCountdown(msg)
				case connectors.RelayCommandResult:
					s.ApplyCommandResult(msg)
				}
			}
		}
	}()
}

func (s *DashboardStore) ApplyDashboard(d protocol.Dashboard, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dashboard = d
	s.updatedAt = at
	for _, update := range d.RelayUpdates() {
		s.applyRelayLocked(update)
	}
	s.notify()
}

func (s *DashboardStore) ApplyRelayUpdate(update protocol.RelayUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyRelayLocked(update)
	s.notify()
}

// controller state settles any pending toggle for that relay
func (s *DashboardStore) applyRelayLocked(update protocol.RelayUpdate) {
	view := s.relays[update.Index]
	view.Index = update.Index
	view.Active = update.Active
	view.Pending = false
	s.relays[update.Index] = view
}

func (s *DashboardStore) ApplyCountdown(tick connectors.CountdownTick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := s.relays[tick.Index]
	view.Index = tick.Index
	view.CountdownRunning = !tick.Cleared
	view.CountdownSeconds = tick.Seconds
	if tick.Cleared {
		view.CountdownSeconds = 0
	}
	s.relays[tick.Index] = view
	s.notify()
}

// MarkPending records an optimistic toggle while the command is in flight.
func (s *DashboardStore) MarkPending(index int, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := s.relays[index]
	view.Index = index
	view.Active = active
	view.Pending = true
	s.relays[index] = view
	s.notify()
}

// ApplyCommandResult reverts a rejected toggle.
func (s *DashboardStore) ApplyCommandResult(result connectors.RelayCommandResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	view, ok := s.relays[result.Index]
	if !ok || !view.Pending {
		return
	}
	if !result.Accepted {
		view.Active = !result.Active
		view.Pending = false
	}
	s.relays[result.Index] = view
	s.notify()
}

// Reset forgets everything, for example after switching controllers.
func (s *DashboardStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dashboard = protocol.Dashboard{}
	s.updatedAt = time.Time{}
	s.relays = make(map[int]RelayView)
	s.notify()
}

func (s *DashboardStore) Dashboard() (protocol.Dashboard, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.dashboard, s.updatedAt
}

// Relays returns relay views sorted by index.
func (s *DashboardStore) Relays() []RelayView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RelayView, 0, len(s.relays))
	for _, v := range s.relays {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })

	return out
}

func (s *DashboardStore) Relay(index int) (RelayView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.relays[index]

	return v, ok
}

func (s *DashboardStore) Changes() <-chan struct{} {
	return s.changes
}

func (s *DashboardStore) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
