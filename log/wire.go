package log

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// MessageWire is the JSON wire format of a log record crossing the engine boundary.
type MessageWire struct {
	Timestamp time.Time  `json:"timestamp,omitempty"`
	Attrs     []AttrWire `json:"attrs,omitempty"`
	Level     string     `json:"level"`
	Message   string     `json:"message"`
}

// AttrWire represents a single slog attribute for wire transfer.
type AttrWire struct {
	Key   string `json:"key"`
	Type  string `json:"type"`  // "string", "int64", "uint64", "bool", "float64", "time", "duration", "error", "json", "any"
	Value string `json:"value"` // String representation of the value
}

// toAttrWire converts a slog.Attr to AttrWire.
func toAttrWire(attr slog.Attr) AttrWire {
	wire := AttrWire{
		Key: attr.Key,
	}
	attr.Value = attr.Value.Resolve()

	switch attr.Value.Kind() {
	case slog.KindString:
		wire.Type = "string"
		wire.Value = attr.Value.String()
	case slog.KindInt64:
		wire.Type = "int64"
		wire.Value = strconv.FormatInt(attr.Value.Int64(), 10)
	case slog.KindUint64:
		wire.Type = "uint64"
		wire.Value = strconv.FormatUint(attr.Value.Uint64(), 10)
	case slog.KindBool:
		wire.Type = "bool"
		wire.Value = strconv.FormatBool(attr.Value.Bool())
	case slog.KindFloat64:
		wire.Type = "float64"
		wire.Value = strconv.FormatFloat(attr.Value.Float64(), 'g', -1, 64)
	case slog.KindTime:
		wire.Type = "time"
		wire.Value = attr.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		wire.Type = "duration"
		wire.Value = attr.Value.Duration().String()
	case slog.KindGroup:
		// groups are flattened by the handler; a stray one travels as text
		wire.Type = "any"
		wire.Value = attr.Value.String()
	default:
		v := attr.Value.Any()
		switch {
		case v == nil:
			wire.Type = "any"
			wire.Value = "<nil>"
		case isError(v):
			wire.Type = "error"
			wire.Value = v.(error).Error()
		default:
			if data, err := json.Marshal(v); err == nil {
				wire.Type = "json"
				wire.Value = string(data)
			} else {
				wire.Type = "any"
				wire.Value = fmt.Sprintf("%v", v)
			}
		}
	}
	return wire
}

func isError(v any) bool {
	_, ok := v.(error)
	return ok
}

// Attr restores the typed slog attribute. Values that do not parse as their
// declared type are kept as strings.
func (w AttrWire) Attr() slog.Attr {
	switch w.Type {
	case "int64":
		if n, err := strconv.ParseInt(w.Value, 10, 64); err == nil {
			return slog.Int64(w.Key, n)
		}
	case "uint64":
		if n, err := strconv.ParseUint(w.Value, 10, 64); err == nil {
			return slog.Uint64(w.Key, n)
		}
	case "bool":
		if b, err := strconv.ParseBool(w.Value); err == nil {
			return slog.Bool(w.Key, b)
		}
	case "float64":
		if f, err := strconv.ParseFloat(w.Value, 64); err == nil {
			return slog.Float64(w.Key, f)
		}
	case "time":
		if ts, err := time.Parse(time.RFC3339Nano, w.Value); err == nil {
			return slog.Time(w.Key, ts)
		}
	case "duration":
		if d, err := time.ParseDuration(w.Value); err == nil {
			return slog.Duration(w.Key, d)
		}
	case "json":
		var v any
		if err := json.Unmarshal([]byte(w.Value), &v); err == nil {
			return slog.Any(w.Key, v)
		}
	}
	return slog.String(w.Key, w.Value)
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
// Names produced by slog.Level.String such as "WARN+2" are accepted.
func ParseLevel(name string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(name)))); err != nil {
		switch strings.ToLower(name) {
		case "warning":
			return slog.LevelWarn
		case "fatal", "panic":
			return slog.LevelError
		}
		return slog.LevelInfo
	}
	return l
}
