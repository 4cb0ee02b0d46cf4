package host

import (
	"context"
	stdErrors "errors"
	"fmt"
	"slices"

	"github.com/aardvark-ui/bridge/channel"
	"github.com/aardvark-ui/bridge/domain/entities"
	"github.com/aardvark-ui/bridge/domain/errors"
	"github.com/aardvark-ui/bridge/domain/ports"
	"github.com/aardvark-ui/bridge/timers"
)

// Channels is the explicit set of channels handed to the embedding application.
type Channels struct {
	// System is the primary channel. The engine host is created against it.
	System *channel.MessageChannel[channel.Object]

	// Registry holds every channel, System included, by name.
	Registry *channel.Registry
}

// Builder creates hosts on one engine.
type Builder struct {
	engine ports.Engine
	cfg    hostConfig
}

// NewBuilder creates a Builder for engine.
func NewBuilder(engine ports.Engine, opts ...Option) *Builder {
	cfg := defaultHostConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Builder{engine: engine, cfg: cfg}
}

// BeforeCreate creates the system channel and every declared channel, in that
// order, and freezes them into a registry. On failure every channel created so
// far is released and the returned error wraps *errors.ChannelCreationError.
func (b *Builder) BeforeCreate(ctx context.Context) (*Prepared, error) {
	specs, err := b.resolveSpecs()
	if err != nil {
		return nil, err
	}

	logger := b.cfg.logger
	dispatcher := channel.NewDispatcher()
	chOpts := []channel.Option{
		channel.WithLogger(logger),
		channel.WithDispatcher(dispatcher),
		channel.WithMiddleware(b.cfg.middleware...),
	}

	system, err := channel.CreateMessageChannel(ctx, b.engine, entities.SystemChannel, channel.JSON(), slices.Clone(chOpts)...)
	if err != nil {
		dispatcher.Close()
		return nil, fmt.Errorf("before create: %w", err)
	}
	if b.cfg.systemHandler != nil {
		system.SetHandler(b.cfg.systemHandler)
	}

	created := []channel.Named{system}
	var timerChannel *channel.MessageChannel[entities.TimerMessage]
	for _, spec := range specs {
		ch, err := spec.create(ctx, b.engine, slices.Clone(chOpts))
		if err != nil {
			releaseAll(ctx, created)
			dispatcher.Close()
			return nil, fmt.Errorf("before create: %w", err)
		}
		if spec.Name == b.cfg.timers {
			timerChannel, _ = ch.(*channel.MessageChannel[entities.TimerMessage])
		}
		created = append(created, ch)
	}

	regOpts := make([]channel.RegistryOption, 0, len(created))
	for _, ch := range created {
		regOpts = append(regOpts, channel.WithChannel(ch))
	}
	reg, err := channel.NewRegistry(regOpts...)
	if err != nil {
		releaseAll(ctx, created)
		dispatcher.Close()
		return nil, fmt.Errorf("before create: %w", err)
	}

	p := &Prepared{
		engine:     b.engine,
		cfg:        b.cfg,
		dispatcher: dispatcher,
		channels:   Channels{System: system, Registry: reg},
	}
	if timerChannel != nil {
		p.timers = timers.New(timerChannel, timers.WithClock(b.cfg.clock), timers.WithLogger(logger))
	}

	logger.DebugContext(ctx, "channels ready", "channels", reg.Names())
	return p, nil
}

// resolveSpecs applies last-declaration-wins per name, keeping first-seen order.
func (b *Builder) resolveSpecs() ([]ChannelSpec, error) {
	declared := slices.Clone(b.cfg.channels)
	if b.cfg.timers != "" {
		declared = append(declared, Typed[entities.TimerMessage](b.cfg.timers, channel.JSONOf[entities.TimerMessage](), nil))
	}

	index := make(map[string]int, len(declared))
	var specs []ChannelSpec
	for _, spec := range declared {
		switch {
		case spec.Name == "" || spec.create == nil:
			return nil, &errors.ConfigError{Field: "channels", Err: stdErrors.New("channel spec needs a name and a constructor")}
		case spec.Name == entities.SystemChannel:
			return nil, &errors.ConfigError{Field: "channels", Err: fmt.Errorf("%q is reserved", entities.SystemChannel)}
		}
		if i, ok := index[spec.Name]; ok {
			b.cfg.logger.Warn("channel declared twice, last declaration wins", "channel", spec.Name)
			specs[i] = spec
			continue
		}
		index[spec.Name] = len(specs)
		specs = append(specs, spec)
	}
	return specs, nil
}

func releaseAll(ctx context.Context, chans []channel.Named) {
	for _, ch := range chans {
		_ = ch.Release(ctx)
	}
}

// Prepared holds the channels of a host that has not been created yet.
type Prepared struct {
	engine     ports.Engine
	dispatcher *channel.Dispatcher
	timers     *timers.Service
	channels   Channels
	cfg        hostConfig
	consumed   bool
}

// Channels returns the channels created during before create.
func (p *Prepared) Channels() Channels {
	return p.channels
}

// Create creates the engine host, handing it the system channel handle.
// A Prepared yields at most one Host. If the engine fails, the channels stay
// intact and Create may be retried.
func (p *Prepared) Create(ctx context.Context, surface entities.Surface) (*Host, error) {
	if p.consumed {
		return nil, &errors.LifecycleOrderingError{Op: "engine_create", State: "consumed", Reason: "channels already handed to a host or discarded"}
	}
	if !surface.Valid() {
		return nil, &errors.ConfigError{Field: "surface", Err: fmt.Errorf("invalid surface %s", surface)}
	}

	handle, err := p.engine.CreateHost(ctx, p.channels.System.Binary().Handle(), surface)
	if err == nil && !handle.Valid() {
		err = errors.ErrInvalidHandle
	}
	if err != nil {
		p.cfg.logger.ErrorContext(ctx, "engine failed to create host", "surface", surface.String(), "error", err)
		return nil, &errors.EngineError{Operation: "create_host", Err: err}
	}
	p.consumed = true

	h := newHost(p, handle, surface)
	h.logger.InfoContext(ctx, "host created", "surface", surface.String(), "channels", p.channels.Registry.Names())
	return h, nil
}

// Discard releases the channels without creating a host.
func (p *Prepared) Discard(ctx context.Context) error {
	if p.consumed {
		return nil
	}
	p.consumed = true
	err := p.channels.Registry.ReleaseAll(ctx)
	if n := p.dispatcher.Close(); n > 0 {
		p.cfg.logger.WarnContext(ctx, "pending deliveries discarded", "count", n)
	}
	return err
}
