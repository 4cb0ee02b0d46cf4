package channel

import (
	"context"
	"log/slog"

	"github.com/aardvark-ui/bridge/domain/ports"
)

// MessageChannel is a BinaryChannel paired with a Codec. Encoding and
// decoding happen synchronously on the calling goroutine; nothing is buffered.
type MessageChannel[T any] struct {
	binary *BinaryChannel
	codec  Codec[T]
	logger *slog.Logger
}

// NewMessageChannel wraps an existing binary channel.
func NewMessageChannel[T any](binary *BinaryChannel, codec Codec[T]) *MessageChannel[T] {
	return &MessageChannel[T]{
		binary: binary,
		codec:  codec,
		logger: binary.logger.With("codec", codec.Name()),
	}
}

// CreateMessageChannel creates the binary channel and wraps it with codec.
func CreateMessageChannel[T any](ctx context.Context, engine ports.Engine, name string, codec Codec[T], opts ...Option) (*MessageChannel[T], error) {
	bc, err := Create(ctx, engine, name, opts...)
	if err != nil {
		return nil, err
	}
	return NewMessageChannel(bc, codec), nil
}

// Name returns the logical channel name.
func (m *MessageChannel[T]) Name() string {
	return m.binary.Name()
}

// Binary returns the underlying transport.
func (m *MessageChannel[T]) Binary() *BinaryChannel {
	return m.binary
}

// Codec returns the channel codec.
func (m *MessageChannel[T]) Codec() Codec[T] {
	return m.codec
}

// Send encodes msg and hands it to the engine. An encoding failure returns
// *errors.EncodingError and nothing is written.
func (m *MessageChannel[T]) Send(ctx context.Context, msg T) error {
	data, err := m.codec.Encode(msg)
	if err != nil {
		m.logger.WarnContext(ctx, "message not sent", "error", err)
		return err
	}
	return m.binary.Send(ctx, NewBinaryBuffer(data))
}

// Post encodes msg on the calling goroutine and schedules the send on the
// owner goroutine. Safe to call from any goroutine.
func (m *MessageChannel[T]) Post(msg T) error {
	data, err := m.codec.Encode(msg)
	if err != nil {
		m.logger.Warn("message not posted", "error", err)
		return err
	}
	return m.binary.Post(data)
}

// SetHandler installs a typed handler. Payloads that fail to decode are logged
// and dropped without invoking h. A nil h discards inbound messages.
func (m *MessageChannel[T]) SetHandler(h func(ctx context.Context, msg T)) {
	if h == nil {
		m.binary.SetHandler(nil)
		return
	}
	m.binary.SetHandler(func(ctx context.Context, buf *BinaryBuffer) {
		msg, err := m.codec.Decode(buf.Bytes())
		if err != nil {
			attrs := []any{"size", buf.Len(), "error", err}
			if dc, ok := DeliveryFrom(ctx); ok {
				attrs = append(attrs, "seq", dc.Seq())
			}
			m.logger.WarnContext(ctx, "undecodable message dropped", attrs...)
			return
		}
		h(ctx, msg)
	})
}

// Release releases the underlying binary channel.
func (m *MessageChannel[T]) Release(ctx context.Context) error {
	return m.binary.Release(ctx)
}
