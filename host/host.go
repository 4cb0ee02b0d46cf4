package host

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aardvark-ui/bridge/channel"
	"github.com/aardvark-ui/bridge/domain/entities"
	"github.com/aardvark-ui/bridge/domain/errors"
	"github.com/aardvark-ui/bridge/domain/ports"
	"github.com/aardvark-ui/bridge/timers"
)

var (
	// ErrResizeUnsupported is returned by Resize when the engine does not implement ports.Resizer.
	ErrResizeUnsupported = stdErrors.New("engine does not support resize")

	// ErrUnknownChannel is returned by Send when no channel of the requested type has the name.
	ErrUnknownChannel = stdErrors.New("unknown channel")
)

// Host is a live engine host and the channels wired to it.
type Host struct {
	engine     ports.Engine
	logger     *slog.Logger
	dispatcher *channel.Dispatcher
	timers     *timers.Service
	channels   Channels
	frames     []func(time.Time)
	id         string
	cfg        hostConfig
	surface    entities.Surface
	handle     ports.HostHandle
	updates    uint64
	mu         sync.Mutex
	destroyed  atomic.Bool
}

func newHost(p *Prepared, handle ports.HostHandle, surface entities.Surface) *Host {
	id := uuid.Must(uuid.NewV7()).String()
	return &Host{
		id:         id,
		engine:     p.engine,
		handle:     handle,
		surface:    surface,
		channels:   p.channels,
		dispatcher: p.dispatcher,
		timers:     p.timers,
		cfg:        p.cfg,
		logger:     p.cfg.logger.With("host", id),
	}
}

// ID returns the host instance id used in logs.
func (h *Host) ID() string {
	return h.id
}

// Handle returns the engine-side host handle.
func (h *Host) Handle() ports.HostHandle {
	return h.handle
}

// Channels returns the channels wired to the host.
func (h *Host) Channels() Channels {
	return h.channels
}

// System returns the primary channel.
func (h *Host) System() *channel.MessageChannel[channel.Object] {
	return h.channels.System
}

// Surface returns the surface the host was last created or resized with.
func (h *Host) Surface() entities.Surface {
	return h.surface
}

// Timers returns the timer service, or nil when timers are not enabled.
func (h *Host) Timers() *timers.Service {
	return h.timers
}

// Updates returns the number of completed updates.
func (h *Host) Updates() uint64 {
	return h.updates
}

// Destroyed reports whether Destroy has been called.
func (h *Host) Destroyed() bool {
	return h.destroyed.Load()
}

// misuse reports a lifecycle ordering error. Debug hosts panic.
func (h *Host) misuse(ctx context.Context, op, reason string) error {
	err := &errors.LifecycleOrderingError{Op: op, State: "destroyed", Reason: reason}
	if h.cfg.debug {
		panic(err)
	}
	h.logger.WarnContext(ctx, "lifecycle misuse ignored", "op", op, "error", err)
	return err
}

// RequestFrame schedules fn to run once at the start of the next Update,
// before the engine ticks. Safe to call from any goroutine.
func (h *Host) RequestFrame(fn func(frameTime time.Time)) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.frames = append(h.frames, fn)
	h.mu.Unlock()
}

// Update runs one tick: queued inbound messages (bounded), frame callbacks,
// due timers, then the engine update.
func (h *Host) Update(ctx context.Context) error {
	if h.destroyed.Load() {
		return h.misuse(ctx, "update", "")
	}

	delivered := h.dispatcher.Drain(ctx, h.cfg.maxDeliveries)
	if backlog := h.dispatcher.Len(); backlog > 0 {
		h.logger.DebugContext(ctx, "deliveries deferred to next update", "delivered", delivered, "backlog", backlog)
	}

	h.mu.Lock()
	frames := h.frames
	h.frames = nil
	h.mu.Unlock()

	now := h.cfg.clock.Now()
	for _, fn := range frames {
		h.runFrame(ctx, fn, now)
	}

	if h.timers != nil {
		h.timers.Advance(ctx)
	}

	if err := h.engine.UpdateHost(ctx, h.handle); err != nil {
		h.logger.ErrorContext(ctx, "engine update failed", "error", err)
		return &errors.EngineError{Operation: "update_host", Err: err}
	}
	h.updates++
	return nil
}

func (h *Host) runFrame(ctx context.Context, fn func(time.Time), now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.ErrorContext(ctx, "frame callback panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn(now)
}

// Resize hands a new surface to the engine host.
func (h *Host) Resize(ctx context.Context, surface entities.Surface) error {
	if h.destroyed.Load() {
		return h.misuse(ctx, "resize", "")
	}
	if !surface.Valid() {
		return &errors.ConfigError{Field: "surface", Err: fmt.Errorf("invalid surface %s", surface)}
	}
	resizer, ok := h.engine.(ports.Resizer)
	if !ok {
		return &errors.EngineError{Operation: "resize_host", Err: ErrResizeUnsupported}
	}
	if err := resizer.ResizeHost(ctx, h.handle, surface); err != nil {
		h.logger.ErrorContext(ctx, "engine resize failed", "surface", surface.String(), "error", err)
		return &errors.EngineError{Operation: "resize_host", Err: err}
	}
	h.surface = surface
	h.logger.DebugContext(ctx, "host resized", "surface", surface.String())
	return nil
}

// SendPointer posts a pointer event on the system channel.
func (h *Host) SendPointer(ev entities.PointerEvent) error {
	if h.destroyed.Load() {
		return &errors.LifecycleOrderingError{Op: "send", State: "destroyed"}
	}
	return h.channels.System.Post(channel.Object{
		"x":      ev.X,
		"y":      ev.Y,
		"action": int(ev.Action),
	})
}

// Destroy destroys the engine host, then releases every channel. Inbound
// messages still queued are discarded and counted in the log. The host
// handle is invalid afterwards.
func (h *Host) Destroy(ctx context.Context) error {
	if !h.destroyed.CompareAndSwap(false, true) {
		return h.misuse(ctx, "destroy", "host already destroyed")
	}

	var errs []error
	if err := h.engine.DestroyHost(ctx, h.handle); err != nil {
		h.logger.ErrorContext(ctx, "engine failed to destroy host", "error", err)
		errs = append(errs, &errors.EngineError{Operation: "destroy_host", Err: err})
	}
	if err := h.channels.Registry.ReleaseAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if n := h.dispatcher.Close(); n > 0 {
		h.logger.WarnContext(ctx, "pending deliveries discarded", "count", n)
	}
	if h.timers != nil {
		h.timers.Reset()
	}

	h.logger.InfoContext(ctx, "host destroyed", "updates", h.updates)
	return stdErrors.Join(errs...)
}

// Send posts msg on the channel registered under name. The message is
// encoded immediately and handed to the engine on the owner goroutine.
func Send[T any](h *Host, name string, msg T) error {
	if h.destroyed.Load() {
		return &errors.LifecycleOrderingError{Op: "send", State: "destroyed"}
	}
	mc, ok := channel.Lookup[T](h.channels.Registry, name)
	if !ok {
		return fmt.Errorf("%w: %q carrying %T", ErrUnknownChannel, name, msg)
	}
	return mc.Post(msg)
}
