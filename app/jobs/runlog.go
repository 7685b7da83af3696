package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/feedloop/feedloop/app/database"
)

// RunLogHandler captures job log records for persistence on the run record
// while forwarding them to the process logger. Handlers derived through
// WithAttrs and WithGroup share the same capture buffer.
type RunLogHandler struct {
	inner slog.Handler
	state *runLogState
}

type runLogState struct {
	mu      sync.Mutex
	entries []database.LogEntry
}

func NewRunLogHandler(inner slog.Handler) *RunLogHandler {
	return &RunLogHandler{inner: inner, state: &runLogState{}}
}

func (h *RunLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo || h.inner.Enabled(ctx, level)
}

// Handle captures Info and above; Debug records only pass through to the
// process logger.
func (h *RunLogHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level >= slog.LevelInfo {
		var b strings.Builder
		b.WriteString(record.Message)
		record.Attrs(func(attr slog.Attr) bool {
			fmt.Fprintf(&b, " %s=%v", attr.Key, attr.Value)
			return true
		})

		h.state.mu.Lock()
		h.state.entries = append(h.state.entries, database.LogEntry{
			Time:    record.Time.UTC(),
			Level:   record.Level.String(),
			Message: b.String(),
		})
		h.state.mu.Unlock()
	}

	if h.inner.Enabled(ctx, record.Level) {
		return h.inner.Handle(ctx, record)
	}
	return nil
}

func (h *RunLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RunLogHandler{inner: h.inner.WithAttrs(attrs), state: h.state}
}

func (h *RunLogHandler) WithGroup(name string) slog.Handler {
	return &RunLogHandler{inner: h.inner.WithGroup(name), state: h.state}
}

// Entries returns a copy of everything captured so far.
func (h *RunLogHandler) Entries() []database.LogEntry {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()

	entries := make([]database.LogEntry, len(h.state.entries))
	copy(entries, h.state.entries)
	return entries
}
