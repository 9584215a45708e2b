package domain

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/irrigo/irrigo/internal/bus"
	"github.com/irrigo/irrigo/internal/connectors"
	"github.com/irrigo/irrigo/internal/protocol"
)

type inlineQueue struct {
	mu    sync.Mutex
	names []string
	done  chan string
}

func (q *inlineQueue) Enqueue(name string, fn func(context.Context) error) {
	_ = fn(context.Background())
	q.mu.Lock()
	q.names = append(q.names, name)
	q.mu.Unlock()
	q.done <- name
}

type memoryLogRepo struct {
	mu   sync.Mutex
	logs []DeviceLog
}

func (r *memoryLogRepo) Insert(_ context.Context, l DeviceLog) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, l)

	return int64(len(r.logs)), nil
}

func (r *memoryLogRepo) ListRecent(_ context.Context, limit int) ([]DeviceLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit > len(r.logs) {
		limit = len(r.logs)
	}
	out := make([]DeviceLog, limit)
	copy(out, r.logs[len(r.logs)-limit:])

	return out, nil
}

type memorySampleRepo struct {
	mu      sync.Mutex
	samples []SensorSample
}

func (r *memorySampleRepo) Insert(_ context.Context, s SensorSample) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)

	return int64(len(r.samples)), nil
}

func (r *memorySampleRepo) ListSince(_ context.Context, since time.Time) ([]SensorSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []SensorSample
	for _, s := range r.samples {
		if !s.At.Before(since) {
			out = append(out, s)
		}
	}

	return out, nil
}

func TestPersistenceProjection_WritesLogsAndSamples(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.New(nil)
	defer b.Close()
	queue := &inlineQueue{done: make(chan string, 4)}
	logs := &memoryLogRepo{}
	samples := &memorySampleRepo{}
	StartPersistenceProjection(ctx, b, queue, logs, samples)

	at := time.Unix(1700000000, 0)
	b.Publish(connectors.TopicDeviceLog, connectors.DeviceLog{
		Entry:      protocol.LogEntry{Tag: "SYS", Level: protocol.LevelInfo, Message: "boot"},
		ReceivedAt: at,
	})
	b.Publish(connectors.TopicDashboard, connectors.DashboardUpdate{
		Dashboard:  protocol.Dashboard{Plants: []protocol.Plant{{Moisture: 41}, {Moisture: 55}}, Temperature: 20},
		ReceivedAt: at,
	})

	seen := map[string]bool{}
	for len(seen) < 2 {
		select {
		case name := <-queue.done:
			seen[name] = true
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for writes, got %v", seen)
		}
	}

	if len(logs.logs) != 1 || logs.logs[0].Message != "boot" {
		t.Fatalf("unexpected persisted logs: %+v", logs.logs)
	}
	if len(samples.samples) != 1 || len(samples.samples[0].Moisture) != 2 || samples.samples[0].Moisture[1] != 55 {
		t.Fatalf("unexpected persisted samples: %+v", samples.samples)
	}
}

func TestLoadStoresFromRepositories_MarksHistory(t *testing.T) {
	repo := &memoryLogRepo{}
	_, _ = repo.Insert(context.Background(), DeviceLog{Message: "a", Source: LogSourceLive})
	_, _ = repo.Insert(context.Background(), DeviceLog{Message: "b", Source: LogSourceLive})

	store := NewLogStore(10)
	if err := LoadStoresFromRepositories(context.Background(), store, repo); err != nil {
		t.Fatalf("load stores: %v", err)
	}
	entries := store.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Source != LogSourceHistory {
			t.Fatalf("expected history source, got %v", e.Source)
		}
	}
}
