package logging

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func newTestBroadcastHandler(maxKeep int) *BroadcastHandler {
	inner := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewBroadcastHandler(inner, maxKeep)
}

func TestBroadcastRecentKeepsTail(t *testing.T) {
	h := newTestBroadcastHandler(3)
	logger := slog.New(h)

	logger.Info("first")
	logger.Warn("second")
	logger.Error("third")
	logger.Info("fourth")
	logger.Info("fifth", "user", "alice")

	recent := h.Recent()
	if len(recent) != 3 {
		t.Fatalf("Recent() len = %d, want 3", len(recent))
	}
	if recent[0].Message != "third" {
		t.Errorf("oldest kept message = %q, want %q", recent[0].Message, "third")
	}
	if recent[0].Level != "ERROR" {
		t.Errorf("level = %q, want ERROR", recent[0].Level)
	}
	if recent[2].Message != "fifth user=alice" {
		t.Errorf("attr formatting = %q, want %q", recent[2].Message, "fifth user=alice")
	}
}

func TestBroadcastDerivedHandlersShareRing(t *testing.T) {
	h := newTestBroadcastHandler(10)
	base := slog.New(h)
	child := base.With("component", "tray")

	base.Info("from base")
	child.Info("from child")

	recent := h.Recent()
	if len(recent) != 2 {
		t.Fatalf("Recent() len = %d, want 2", len(recent))
	}
	if recent[1].Message != "from child component=tray" {
		t.Errorf("derived message = %q, want %q", recent[1].Message, "from child component=tray")
	}
}

func TestEventEmitterBatches(t *testing.T) {
	var mu sync.Mutex
	var batches [][]LogEntry

	e := NewEventEmitter()
	e.Start(func(name string, data any) {
		if name != "log:batch" {
			t.Errorf("event name = %q, want log:batch", name)
		}
		entries, ok := data.([]LogEntry)
		if !ok {
			t.Errorf("event data type = %T, want []LogEntry", data)
			return
		}
		batch := make([]LogEntry, len(entries))
		copy(batch, entries)
		mu.Lock()
		batches = append(batches, batch)
		mu.Unlock()
	})
	defer e.Stop()

	for i := 0; i < 10; i++ {
		e.Emit(LogEntry{Level: "INFO", Message: "entry"})
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		total := 0
		for _, b := range batches {
			total += len(b)
		}
		mu.Unlock()

		if total == 10 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("emitted entries = %d, want 10", total)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEventEmitterStopDrains(t *testing.T) {
	var mu sync.Mutex
	count := 0

	e := NewEventEmitter()
	e.Start(func(name string, data any) {
		entries := data.([]LogEntry)
		mu.Lock()
		count += len(entries)
		mu.Unlock()
	})

	for i := 0; i < 5; i++ {
		e.Emit(LogEntry{Level: "DEBUG", Message: "pending"})
	}

	e.Stop()

	mu.Lock()
	got := count
	mu.Unlock()
	if got != 5 {
		t.Errorf("entries flushed on Stop = %d, want 5", got)
	}

	if e.IsEnabled() {
		t.Error("IsEnabled() = true after Stop")
	}
}
