package state

import (
	"context"
	"testing"
)

func TestJournal(t *testing.T) {
	ctx := context.Background()

	t.Run("append and read back", func(t *testing.T) {
		journal, err := OpenJournal(":memory:")
		if err != nil {
			t.Fatalf("unexpected open error: %v", err)
		}
		defer journal.Close()

		events := []struct {
			phase, eventType, detail string
		}{
			{"probe", "started", ""},
			{"probe", "succeeded", "attempt 3"},
			{"migrate", "completed", "code 0"},
		}
		for _, ev := range events {
			if err := journal.Append(ctx, "run-1", ev.phase, ev.eventType, ev.detail); err != nil {
				t.Fatalf("unexpected append error: %v", err)
			}
		}

		recent, err := journal.Recent(ctx, 2)
		if err != nil {
			t.Fatalf("unexpected recent error: %v", err)
		}
		if len(recent) != 2 {
			t.Fatalf("Expected 2 entries, got %d", len(recent))
		}
		if recent[0].EventType != "completed" {
			t.Errorf("Expected newest entry first, got %q", recent[0].EventType)
		}
	})

	t.Run("by run filters and orders", func(t *testing.T) {
		journal, err := OpenJournal(":memory:")
		if err != nil {
			t.Fatalf("unexpected open error: %v", err)
		}
		defer journal.Close()

		if err := journal.Append(ctx, "run-a", "probe", "started", ""); err != nil {
			t.Fatalf("unexpected append error: %v", err)
		}
		if err := journal.Append(ctx, "run-b", "probe", "started", ""); err != nil {
			t.Fatalf("unexpected append error: %v", err)
		}
		if err := journal.Append(ctx, "run-a", "probe", "succeeded", ""); err != nil {
			t.Fatalf("unexpected append error: %v", err)
		}

		entries, err := journal.ByRun(ctx, "run-a")
		if err != nil {
			t.Fatalf("unexpected by-run error: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("Expected 2 entries for run-a, got %d", len(entries))
		}
		if entries[0].EventType != "started" || entries[1].EventType != "succeeded" {
			t.Errorf("Expected insertion order, got %q then %q", entries[0].EventType, entries[1].EventType)
		}
		for _, e := range entries {
			if e.RunID != "run-a" {
				t.Errorf("Expected run-a entries only, got %q", e.RunID)
			}
		}
	})

	t.Run("nil journal is a no-op", func(t *testing.T) {
		var journal *Journal
		if err := journal.Append(ctx, "run", "phase", "event", ""); err != nil {
			t.Errorf("Expected nil append to succeed, got %v", err)
		}
		entries, err := journal.Recent(ctx, 5)
		if err != nil {
			t.Errorf("Expected nil recent to succeed, got %v", err)
		}
		if entries != nil {
			t.Errorf("Expected no entries from nil journal, got %d", len(entries))
		}
		if err := journal.Close(); err != nil {
			t.Errorf("Expected nil close to succeed, got %v", err)
		}
	})
}
