package entities

import (
	"fmt"
	"log/slog"
)

// ErrorDetail is the structured form of a bridge error. It is what engines
// report back across the boundary and what log records carry as an "error"
// group. Type is one of "channel", "decode", "encoding", "lifecycle",
// "engine", "config" or "internal"; Code narrows it (a channel name, a codec,
// a lifecycle operation, a config field).
type ErrorDetail struct {
	Cause   *ErrorDetail   `json:"cause,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Message string         `json:"message"`
	Type    string         `json:"type"`
	Code    string         `json:"code,omitempty"`
}

// NewErrorDetail creates an ErrorDetail of the given type.
func NewErrorDetail(errorType, message string) *ErrorDetail {
	return &ErrorDetail{Type: errorType, Message: message}
}

func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s [%s %s]", msg, e.Type, e.Code)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *ErrorDetail) Unwrap() error {
	if e == nil || e.Cause == nil {
		return nil
	}
	return e.Cause
}

// WithCode sets the code and returns the receiver.
func (e *ErrorDetail) WithCode(code string) *ErrorDetail {
	e.Code = code
	return e
}

// WithCause chains cause below the receiver and returns the receiver.
func (e *ErrorDetail) WithCause(cause *ErrorDetail) *ErrorDetail {
	e.Cause = cause
	return e
}

// LogValue implements slog.LogValuer.
func (e *ErrorDetail) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("type", e.Type),
		slog.String("message", e.Message),
	}
	if e.Code != "" {
		attrs = append(attrs, slog.String("code", e.Code))
	}
	for k, v := range e.Details {
		attrs = append(attrs, slog.Any(k, v))
	}
	if e.Cause != nil {
		attrs = append(attrs, slog.Any("cause", e.Cause))
	}
	return slog.GroupValue(attrs...)
}
