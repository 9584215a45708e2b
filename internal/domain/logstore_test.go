package domain

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/irrigo/irrigo/internal/bus"
	"github.com/irrigo/irrigo/internal/connectors"
	"github.com/irrigo/irrigo/internal/protocol"
)

func TestLogStore_AppendKeepsMostRecentWithinCapacity(t *testing.T) {
	store := NewLogStore(3)
	for i := 0; i < 5; i++ {
		store.Append(DeviceLog{Tag: "WIFI", Message: fmt.Sprintf("line %d", i)})
	}

	entries := store.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Message != "line 2" || entries[2].Message != "line 4" {
		t.Fatalf("expected oldest entries to be dropped, got %+v", entries)
	}
}

func TestLogStore_LoadPutsHistoryBeforeLiveEntries(t *testing.T) {
	store := NewLogStore(10)
	store.Append(DeviceLog{Message: "live", Source: LogSourceLive})
	store.Load([]DeviceLog{{Message: "old", Source: LogSourceHistory}})

	entries := store.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "old" || entries[1].Message != "live" {
		t.Fatalf("unexpected order: %+v", entries)
	}
}

func TestLogStore_ChangesCoalesce(t *testing.T) {
	store := NewLogStore(10)
	store.Append(DeviceLog{Message: "a"})
	store.Append(DeviceLog{Message: "b"})

	select {
	case <-store.Changes():
	default:
		t.Fatalf("expected change notification")
	}
	select {
	case <-store.Changes():
		t.Fatalf("expected notifications to coalesce")
	default:
	}
}

func TestLogStore_StartConsumesDeviceLogs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.New(nil)
	defer b.Close()
	store := NewLogStore(10)
	store.Start(ctx, b)

	at := time.Unix(1700000000, 0)
	b.Publish(connectors.TopicDeviceLog, connectors.DeviceLog{
		Entry:      protocol.LogEntry{Tag: "PUMP", Level: protocol.LevelWarning, Message: "dry run"},
		ReceivedAt: at,
	})

	select {
	case <-store.Changes():
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for device log")
	}
	entries := store.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.Tag != "PUMP" || got.Level != protocol.LevelWarning || got.Source != LogSourceLive || !got.ReceivedAt.Equal(at) {
		t.Fatalf("unexpected entry: %+v", got)
	}
}
