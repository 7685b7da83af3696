package jobs

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestRunLog() (*RunLogHandler, *slog.Logger) {
	handler := NewRunLogHandler(slog.NewTextHandler(io.Discard, nil))
	return handler, slog.New(handler)
}

func TestRunLogHandlerCapturesInfoAndAbove(t *testing.T) {
	handler, log := newTestRunLog()

	log.Info("Refresh completed", "new_items", 3)
	log.Warn("Source skipped", "source_id", "abc")
	log.Error("Fetch failed")

	entries := handler.Entries()
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].Message != "Refresh completed new_items=3" {
		t.Errorf("Expected attributes folded into the message, got %q", entries[0].Message)
	}
	if entries[0].Level != "INFO" {
		t.Errorf("Expected level INFO, got %q", entries[0].Level)
	}
	if entries[1].Level != "WARN" {
		t.Errorf("Expected level WARN, got %q", entries[1].Level)
	}
	if entries[2].Level != "ERROR" {
		t.Errorf("Expected level ERROR, got %q", entries[2].Level)
	}
	if entries[0].Time.IsZero() {
		t.Error("Expected a timestamp on the entry")
	}
	if entries[0].Time.Location() != time.UTC {
		t.Errorf("Expected a UTC timestamp, got %v", entries[0].Time.Location())
	}
}

func TestRunLogHandlerSkipsDebug(t *testing.T) {
	handler, log := newTestRunLog()

	log.Debug("Noise")
	log.Info("Signal")

	entries := handler.Entries()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].Message != "Signal" {
		t.Errorf("Expected only the info record, got %q", entries[0].Message)
	}
}

func TestRunLogHandlerDerivedLoggersShareBuffer(t *testing.T) {
	handler, log := newTestRunLog()

	log.Info("Direct")
	log.With("source_id", "abc").Info("Derived")
	log.WithGroup("refresh").Info("Grouped")

	entries := handler.Entries()
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries from the shared buffer, got %d", len(entries))
	}
	for i, want := range []string{"Direct", "Derived", "Grouped"} {
		if !strings.HasPrefix(entries[i].Message, want) {
			t.Errorf("Expected entry %d to start with %q, got %q", i, want, entries[i].Message)
		}
	}
}

func TestRunLogHandlerEntriesReturnsCopy(t *testing.T) {
	handler, log := newTestRunLog()

	log.Info("First")
	entries := handler.Entries()
	entries[0].Message = "mutated"

	if got := handler.Entries()[0].Message; got != "First" {
		t.Errorf("Expected the captured entry untouched, got %q", got)
	}
}
