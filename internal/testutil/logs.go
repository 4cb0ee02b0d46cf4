package testutil

import (
	"context"
	"log/slog"
	"sync"
)

// LogRecorder is a slog.Handler that keeps every record for assertions.
type LogRecorder struct {
	store *logStore
	attrs []slog.Attr
}

// LoggedRecord is a flattened log record.
type LoggedRecord struct {
	Attrs   map[string]any
	Message string
	Level   slog.Level
}

type logStore struct {
	records []LoggedRecord
	mu      sync.Mutex
}

// NewLogger returns a debug-level logger backed by a LogRecorder.
func NewLogger() (*slog.Logger, *LogRecorder) {
	rec := &LogRecorder{store: &logStore{}}
	return slog.New(rec), rec
}

// Enabled implements slog.Handler.
func (r *LogRecorder) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle implements slog.Handler.
func (r *LogRecorder) Handle(_ context.Context, record slog.Record) error {
	attrs := make(map[string]any, len(r.attrs)+record.NumAttrs())
	for _, a := range r.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	record.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.records = append(r.store.records, LoggedRecord{
		Level:   record.Level,
		Message: record.Message,
		Attrs:   attrs,
	})
	return nil
}

// WithAttrs implements slog.Handler.
func (r *LogRecorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(r.attrs)+len(attrs))
	merged = append(merged, r.attrs...)
	merged = append(merged, attrs...)
	return &LogRecorder{store: r.store, attrs: merged}
}

// WithGroup implements slog.Handler. Groups are flattened.
func (r *LogRecorder) WithGroup(string) slog.Handler {
	return r
}

// Records returns every record logged so far.
func (r *LogRecorder) Records() []LoggedRecord {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]LoggedRecord, len(r.store.records))
	copy(out, r.store.records)
	return out
}

// Find returns the records with the given message.
func (r *LogRecorder) Find(msg string) []LoggedRecord {
	var out []LoggedRecord
	for _, rec := range r.Records() {
		if rec.Message == msg {
			out = append(out, rec)
		}
	}
	return out
}

// Count returns how many records carry the given message.
func (r *LogRecorder) Count(msg string) int {
	return len(r.Find(msg))
}
