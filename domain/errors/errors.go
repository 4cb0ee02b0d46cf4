// Package errors provides the bridge error taxonomy.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/aardvark-ui/bridge/domain/entities"
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

var (
	// ErrChannelReleased is returned when sending on a channel after Release.
	ErrChannelReleased = stdErrors.New("channel released")

	// ErrDispatcherClosed is returned when posting to a dispatcher after Close.
	ErrDispatcherClosed = stdErrors.New("dispatcher closed")

	// ErrInvalidHandle is returned by engines for handles they did not issue.
	ErrInvalidHandle = stdErrors.New("invalid handle")
)

// DetailedError is implemented by error types that can describe themselves
// as a structured ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to our structured ErrorDetail.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// ChannelCreationError reports that the engine could not allocate the
// counterpart of a binary channel. It is fatal for that channel.
type ChannelCreationError struct {
	Err     error
	Channel string
}

func (e *ChannelCreationError) Error() string {
	return fmt.Sprintf("create channel %q: %v", e.Channel, e.Err)
}

func (e *ChannelCreationError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ChannelCreationError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "channel", Code: e.Channel}
}

// DecodeError reports a payload that the codec could not turn into a value.
// It is local to one message: the message is dropped and the channel stays usable.
type DecodeError struct {
	Err   error
	Codec string
	Size  int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s decode of %d bytes failed: %v", e.Codec, e.Size, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *DecodeError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "decode", Code: e.Codec}
}

// EncodingError reports a value that could not be encoded. The send is
// treated as failed at the call site and nothing is written.
type EncodingError struct {
	Err   error
	Codec string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s encode failed: %v", e.Codec, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *EncodingError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "encoding", Code: e.Codec}
}

// LifecycleOrderingError reports a lifecycle operation invoked in a state that
// does not allow it. It is a programming error.
type LifecycleOrderingError struct {
	Op     string
	State  string
	Reason string
}

func (e *LifecycleOrderingError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("lifecycle: %s not allowed in state %s: %s", e.Op, e.State, e.Reason)
	}
	return fmt.Sprintf("lifecycle: %s not allowed in state %s", e.Op, e.State)
}

// ToErrorDetail implements DetailedError.
func (e *LifecycleOrderingError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message: e.Error(),
		Type:    "lifecycle",
		Code:    e.Op,
		Details: map[string]any{"state": e.State},
	}
}

// EngineError wraps a failure reported by the engine for a lifecycle call.
type EngineError struct {
	Err       error
	Operation string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s failed: %v", e.Operation, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *EngineError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "engine", Code: e.Operation}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ConfigError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "config", Code: e.Field}
}

// IsDecode reports whether err is (or wraps) a DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return stdErrors.As(err, &de)
}

// IsLifecycle reports whether err is (or wraps) a LifecycleOrderingError.
func IsLifecycle(err error) bool {
	var le *LifecycleOrderingError
	return stdErrors.As(err, &le)
}
