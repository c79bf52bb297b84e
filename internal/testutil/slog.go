// Package testutil holds shared test helpers, most importantly a buffered
// slog handler used to assert on warn-level events such as fallback-anchor
// usage in the expiry resolver.
package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// LogRecord is one captured log record.
type LogRecord struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// BufferedSlogHandler captures log records for assertions in tests.
type BufferedSlogHandler struct {
	mu      sync.Mutex
	records []LogRecord
	attrs   []slog.Attr
	t       *testing.T
}

// NewBufferedSlogHandler creates a capturing handler. Records are also
// echoed to the test log for debugging.
func NewBufferedSlogHandler(t *testing.T) *BufferedSlogHandler {
	return &BufferedSlogHandler{t: t}
}

// NewTestLogger returns a logger wired to a fresh buffered handler.
func NewTestLogger(t *testing.T) (*slog.Logger, *BufferedSlogHandler) {
	h := NewBufferedSlogHandler(t)
	return slog.New(h), h
}

// Handle implements slog.Handler.
func (h *BufferedSlogHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	attrs := make(map[string]any)
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	h.records = append(h.records, LogRecord{
		Time:    r.Time,
		Level:   r.Level,
		Message: r.Message,
		Attrs:   attrs,
	})

	if h.t != nil {
		h.t.Logf("[%s] %s %v", r.Level, r.Message, attrs)
	}
	return nil
}

// Enabled implements slog.Handler; tests capture every level.
func (h *BufferedSlogHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

// WithAttrs implements slog.Handler.
func (h *BufferedSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	clone := &BufferedSlogHandler{t: h.t, records: h.records}
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	// Share the record slice by pointer semantics through the parent.
	return &sharedHandler{parent: h, attrs: clone.attrs}
}

// WithGroup implements slog.Handler. Groups are flattened in tests.
func (h *BufferedSlogHandler) WithGroup(string) slog.Handler {
	return h
}

// sharedHandler forwards to the parent buffer while carrying bound attrs.
type sharedHandler struct {
	parent *BufferedSlogHandler
	attrs  []slog.Attr
}

func (s *sharedHandler) Handle(ctx context.Context, r slog.Record) error {
	r2 := r.Clone()
	r2.AddAttrs(s.attrs...)
	return s.parent.Handle(ctx, r2)
}

func (s *sharedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return s.parent.Enabled(ctx, level)
}

func (s *sharedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sharedHandler{parent: s.parent, attrs: append(append([]slog.Attr{}, s.attrs...), attrs...)}
}

func (s *sharedHandler) WithGroup(string) slog.Handler {
	return s
}

// Records returns a copy of the captured records.
func (h *BufferedSlogHandler) Records() []LogRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]LogRecord, len(h.records))
	copy(out, h.records)
	return out
}

// HasMessage reports whether any captured record at the given level contains
// the substring.
func (h *BufferedSlogHandler) HasMessage(level slog.Level, substring string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.records {
		if r.Level == level && strings.Contains(r.Message, substring) {
			return true
		}
	}
	return false
}

// CountLevel returns the number of records captured at the given level.
func (h *BufferedSlogHandler) CountLevel(level slog.Level) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level {
			n++
		}
	}
	return n
}

// Reset clears the captured records.
func (h *BufferedSlogHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = nil
}
