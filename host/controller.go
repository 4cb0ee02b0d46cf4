package host

import (
	"context"
	"log/slog"

	"github.com/aardvark-ui/bridge/domain/entities"
	"github.com/aardvark-ui/bridge/domain/errors"
	"github.com/aardvark-ui/bridge/domain/ports"
)

// State is the lifecycle state of a Controller.
type State int

const (
	StateUninitialized State = iota
	StateChannelsReady
	StateRunning
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateChannelsReady:
		return "channels_ready"
	case StateRunning:
		return "running"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Controller drives the lifecycle from platform callbacks that arrive in an
// order the embedder does not control. Calls out of order return
// *errors.LifecycleOrderingError, or panic when debug is enabled.
type Controller struct {
	builder  *Builder
	prepared *Prepared
	host     *Host
	logger   *slog.Logger
	state    State
}

// NewController creates a controller for engine.
func NewController(engine ports.Engine, opts ...Option) *Controller {
	b := NewBuilder(engine, opts...)
	return &Controller{builder: b, logger: b.cfg.logger}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Host returns the live host, or nil before engine creation.
func (c *Controller) Host() *Host {
	return c.host
}

// Channels returns the channels once before create has run.
func (c *Controller) Channels() (Channels, bool) {
	switch {
	case c.host != nil:
		return c.host.Channels(), true
	case c.prepared != nil:
		return c.prepared.Channels(), true
	default:
		return Channels{}, false
	}
}

func (c *Controller) misuse(ctx context.Context, op, reason string) error {
	err := &errors.LifecycleOrderingError{Op: op, State: c.state.String(), Reason: reason}
	if c.builder.cfg.debug {
		panic(err)
	}
	c.logger.WarnContext(ctx, "lifecycle misuse ignored", "op", op, "state", c.state.String())
	return err
}

// BeforeCreate builds the channels. Called again before engine creation, it
// releases the earlier channels and rebuilds them, so each name is registered
// exactly once. On failure the controller stays uninitialized.
func (c *Controller) BeforeCreate(ctx context.Context) error {
	switch c.state {
	case StateUninitialized:
	case StateChannelsReady:
		c.logger.WarnContext(ctx, "before create called twice, rebuilding channels")
		if err := c.prepared.Discard(ctx); err != nil {
			c.logger.WarnContext(ctx, "releasing earlier channels failed", "error", err)
		}
		c.prepared = nil
		c.state = StateUninitialized
	default:
		return c.misuse(ctx, "before_create", "engine host already created")
	}

	p, err := c.builder.BeforeCreate(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "before create failed", "error", err)
		return err
	}
	c.prepared = p
	c.state = StateChannelsReady
	return nil
}

// EngineCreate creates the engine host. It requires BeforeCreate to have succeeded.
func (c *Controller) EngineCreate(ctx context.Context, surface entities.Surface) error {
	if c.state != StateChannelsReady {
		reason := ""
		if c.state == StateUninitialized {
			reason = "channels not created"
		}
		return c.misuse(ctx, "engine_create", reason)
	}

	h, err := c.prepared.Create(ctx, surface)
	if err != nil {
		return err
	}
	c.host = h
	c.prepared = nil
	c.state = StateRunning
	return nil
}

// SurfaceChanged creates the engine host on the first call and resizes it afterwards.
func (c *Controller) SurfaceChanged(ctx context.Context, surface entities.Surface) error {
	switch c.state {
	case StateChannelsReady:
		return c.EngineCreate(ctx, surface)
	case StateRunning:
		return c.host.Resize(ctx, surface)
	default:
		return c.misuse(ctx, "surface_changed", "")
	}
}

// Update ticks the running host.
func (c *Controller) Update(ctx context.Context) error {
	if c.state != StateRunning {
		return c.misuse(ctx, "update", "")
	}
	return c.host.Update(ctx)
}

// Destroy tears down whatever exists. Destroying twice is a misuse.
func (c *Controller) Destroy(ctx context.Context) error {
	var err error
	switch c.state {
	case StateUninitialized:
	case StateChannelsReady:
		err = c.prepared.Discard(ctx)
		c.prepared = nil
	case StateRunning:
		err = c.host.Destroy(ctx)
	default:
		return c.misuse(ctx, "destroy", "already destroyed")
	}
	c.state = StateDestroyed
	return err
}
