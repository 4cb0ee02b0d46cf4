package channel

import (
	"bytes"
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/aardvark-ui/bridge/domain/errors"
	"github.com/aardvark-ui/bridge/domain/ports"
)

// Handler consumes one inbound message. The buffer is only valid for the call.
type Handler func(ctx context.Context, buf *BinaryBuffer)

// BinaryChannel is a duplex byte transport paired with exactly one engine-side
// channel. It implements ports.BoundChannel.
type BinaryChannel struct {
	engine     ports.Engine
	logger     *slog.Logger
	dispatcher *Dispatcher
	handler    Handler
	name       string
	middleware []Middleware
	handle     ports.ChannelHandle
	seq        atomic.Uint64
	mu         sync.RWMutex
	released   atomic.Bool
}

var _ ports.BoundChannel = (*BinaryChannel)(nil)

// Create constructs a channel and its engine-side counterpart.
// Construction is the only point at which the engine allocates the
// counterpart; failure returns *errors.ChannelCreationError.
func Create(ctx context.Context, engine ports.Engine, name string, opts ...Option) (*BinaryChannel, error) {
	if name == "" {
		return nil, &errors.ChannelCreationError{Channel: name, Err: stdErrors.New("channel name cannot be empty")}
	}
	if engine == nil {
		return nil, &errors.ChannelCreationError{Channel: name, Err: stdErrors.New("no engine")}
	}

	cfg := defaultChannelConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	mw := make([]Middleware, 0, len(cfg.middleware)+1)
	mw = append(mw, RecoveryMiddleware(cfg.logger))
	mw = append(mw, cfg.middleware...)

	c := &BinaryChannel{
		name:       name,
		engine:     engine,
		logger:     cfg.logger.With("channel", name),
		dispatcher: cfg.dispatcher,
		middleware: mw,
	}
	c.SetHandler(cfg.handler)

	handle, err := engine.CreateChannel(ctx, c)
	if err != nil {
		return nil, &errors.ChannelCreationError{Channel: name, Err: err}
	}
	if !handle.Valid() {
		return nil, &errors.ChannelCreationError{Channel: name, Err: errors.ErrInvalidHandle}
	}
	c.handle = handle

	c.logger.DebugContext(ctx, "channel created", "handle", handle.String())
	return c, nil
}

// Name returns the logical channel name.
func (c *BinaryChannel) Name() string {
	return c.name
}

// Handle returns the engine-side handle.
func (c *BinaryChannel) Handle() ports.ChannelHandle {
	return c.handle
}

// Binary returns c. It lets a registry hold binary and typed channels alike.
func (c *BinaryChannel) Binary() *BinaryChannel {
	return c
}

// Released reports whether Release has been called.
func (c *BinaryChannel) Released() bool {
	return c.released.Load()
}

// SetHandler replaces the inbound handler. Only deliveries dispatched after
// the call see the new handler. A nil handler discards inbound messages.
func (c *BinaryChannel) SetHandler(h Handler) {
	var wrapped Handler
	if h != nil {
		wrapped = chain(h, c.middleware)
	}

	c.mu.Lock()
	c.handler = wrapped
	c.mu.Unlock()
}

// Send hands buf to the engine. Delivery is fire-and-forget and at-most-once:
// there is no acknowledgement and no retry.
func (c *BinaryChannel) Send(ctx context.Context, buf *BinaryBuffer) error {
	if c.released.Load() {
		c.logger.WarnContext(ctx, "send on released channel", "size", buf.Remaining())
		return fmt.Errorf("send on %q: %w", c.name, errors.ErrChannelReleased)
	}

	if err := c.engine.DeliverMessage(ctx, c.handle, buf.Bytes()); err != nil {
		c.logger.ErrorContext(ctx, "engine rejected message", "size", buf.Remaining(), "error", err)
		return &errors.EngineError{Operation: "deliver_message", Err: err}
	}
	return nil
}

// Post schedules a send of data on the owner goroutine. Without a dispatcher
// the send happens immediately.
func (c *BinaryChannel) Post(data []byte) error {
	if c.released.Load() {
		return fmt.Errorf("post on %q: %w", c.name, errors.ErrChannelReleased)
	}

	if c.dispatcher == nil {
		return c.Send(context.Background(), NewBinaryBuffer(data))
	}

	owned := bytes.Clone(data)
	err := c.dispatcher.Post(func(ctx context.Context) {
		// Send logs its own failures.
		_ = c.Send(ctx, NewBinaryBuffer(owned))
	})
	if err != nil {
		c.logger.Warn("outbound message dropped", "size", len(owned), "error", err)
		return fmt.Errorf("post on %q: %w", c.name, err)
	}
	return nil
}

// OnNativeMessage receives bytes from the engine. It may be called from any
// goroutine. The bytes are copied before the call returns.
func (c *BinaryChannel) OnNativeMessage(data []byte) {
	if c.released.Load() {
		c.logger.Warn("inbound message after release dropped", "size", len(data))
		return
	}

	msg := bytes.Clone(data)
	if msg == nil {
		msg = []byte{}
	}
	seq := c.seq.Add(1)

	if c.dispatcher == nil {
		c.deliver(context.Background(), seq, msg)
		return
	}

	err := c.dispatcher.Post(func(ctx context.Context) {
		c.deliver(ctx, seq, msg)
	})
	if err != nil {
		c.logger.Warn("inbound message dropped", "seq", seq, "size", len(msg), "error", err)
	}
}

func (c *BinaryChannel) deliver(ctx context.Context, seq uint64, msg []byte) {
	if c.released.Load() {
		c.logger.DebugContext(ctx, "delivery after release discarded", "seq", seq, "size", len(msg))
		return
	}

	c.mu.RLock()
	h := c.handler
	c.mu.RUnlock()

	if h == nil {
		c.logger.DebugContext(ctx, "no handler, message discarded", "seq", seq, "size", len(msg))
		return
	}

	h(newDeliveryContext(ctx, c.name, seq), NewBinaryBuffer(msg))
}

// Release tears down the engine-side counterpart. It is idempotent;
// only the first call reaches the engine.
func (c *BinaryChannel) Release(ctx context.Context) error {
	if !c.released.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	c.handler = nil
	c.mu.Unlock()

	if err := c.engine.ReleaseChannel(ctx, c.handle); err != nil {
		c.logger.WarnContext(ctx, "engine failed to release channel", "error", err)
		return &errors.EngineError{Operation: "release_channel", Err: err}
	}
	c.logger.DebugContext(ctx, "channel released")
	return nil
}
