// Package log carries structured logging for the bridge: process logger
// setup, and the wire format used to move log records across the engine
// boundary in both directions.
package log

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
)

// Sink receives one serialized MessageWire per record.
type Sink func(payload []byte)

// WireHandler implements slog.Handler by serializing records into MessageWire
// and handing them to a Sink.
type WireHandler struct {
	sink   Sink
	attrs  []slog.Attr
	groups []string
	opts   handlerConfig
}

// HandlerOption configures the WireHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	level     slog.Leveler
	addSource bool
}

func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		level: slog.LevelInfo,
	}
}

// WithLevel sets the minimum log level to report.
func WithLevel(level slog.Leveler) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithSource enables reporting of source location (file/line) as a "source" attribute.
func WithSource(enabled bool) HandlerOption {
	return func(c *handlerConfig) {
		c.addSource = enabled
	}
}

// NewHandler creates a WireHandler writing to sink.
func NewHandler(sink Sink, opts ...HandlerOption) *WireHandler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &WireHandler{sink: sink, opts: cfg}
}

// Enabled reports whether the handler handles records at the given level.
func (h *WireHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level.Level()
}

// Handle serializes record and passes it to the sink.
func (h *WireHandler) Handle(_ context.Context, record slog.Record) error {
	msg := MessageWire{
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
	}

	prefix := groupPrefix(h.groups)
	for _, a := range h.attrs {
		msg.Attrs = appendAttr(msg.Attrs, "", a)
	}
	if h.opts.addSource && record.PC != 0 {
		if src := record.Source(); src != nil {
			msg.Attrs = append(msg.Attrs, toAttrWire(slog.Any(slog.SourceKey, src)))
		}
	}
	record.Attrs(func(a slog.Attr) bool {
		msg.Attrs = appendAttr(msg.Attrs, prefix, a)
		return true
	})

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if h.sink != nil {
		h.sink(payload)
	}
	return nil
}

// appendAttr flattens groups into dotted keys.
func appendAttr(dst []AttrWire, prefix string, a slog.Attr) []AttrWire {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			dst = appendAttr(dst, p, ga)
		}
		return dst
	}
	a.Key = prefix + a.Key
	return append(dst, toAttrWire(a))
}

func groupPrefix(groups []string) string {
	p := ""
	for _, g := range groups {
		p += g + "."
	}
	return p
}

// WithAttrs returns a new WireHandler that includes the given attributes.
func (h *WireHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	nh := *h
	prefix := groupPrefix(h.groups)
	nh.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		a.Key = prefix + a.Key
		nh.attrs = append(nh.attrs, a)
	}
	return &nh
}

// WithGroup returns a new WireHandler with the given group name.
func (h *WireHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.groups = append(slices.Clone(h.groups), name)
	return &nh
}
