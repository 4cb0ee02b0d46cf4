package host

import (
	"context"
	"log/slog"

	"github.com/aardvark-ui/bridge/channel"
	"github.com/aardvark-ui/bridge/timers"
)

// DefaultMaxDeliveriesPerUpdate bounds the inbound messages handled per Update.
const DefaultMaxDeliveriesPerUpdate = 256

// Option defines a functional option for configuring a Builder or Controller.
type Option func(*hostConfig)

type hostConfig struct {
	logger        *slog.Logger
	clock         timers.Clock
	systemHandler func(context.Context, channel.Object)
	timers        string
	channels      []ChannelSpec
	middleware    []channel.Middleware
	maxDeliveries int
	debug         bool
}

func defaultHostConfig() hostConfig {
	return hostConfig{
		logger:        slog.Default(),
		clock:         timers.SystemClock,
		maxDeliveries: DefaultMaxDeliveriesPerUpdate,
	}
}

// WithLogger sets the logger used by the host and its channels.
func WithLogger(logger *slog.Logger) Option {
	return func(c *hostConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithChannel declares an additional channel created during before create.
// Declaring the same name twice keeps the last declaration.
func WithChannel(spec ChannelSpec) Option {
	return func(c *hostConfig) {
		c.channels = append(c.channels, spec)
	}
}

// WithSystemHandler installs the handler for messages the engine sends on the
// system channel. It is installed before the engine host exists.
func WithSystemHandler(h func(ctx context.Context, msg channel.Object)) Option {
	return func(c *hostConfig) {
		c.systemHandler = h
	}
}

// WithMiddleware adds middleware to every channel handler.
func WithMiddleware(mw ...channel.Middleware) Option {
	return func(c *hostConfig) {
		c.middleware = append(c.middleware, mw...)
	}
}

// WithMaxDeliveriesPerUpdate bounds the queued inbound messages handled by a
// single Update. Zero or less handles everything queued when Update starts.
func WithMaxDeliveriesPerUpdate(n int) Option {
	return func(c *hostConfig) {
		c.maxDeliveries = n
	}
}

// WithDebug makes lifecycle misuse panic instead of only being logged and returned.
func WithDebug(debug bool) Option {
	return func(c *hostConfig) {
		c.debug = debug
	}
}

// WithTimers serves the deferred callback protocol on a JSON channel named name.
func WithTimers(name string) Option {
	return func(c *hostConfig) {
		c.timers = name
	}
}

// WithClock replaces the wall clock used for frame callbacks and timers.
func WithClock(clock timers.Clock) Option {
	return func(c *hostConfig) {
		if clock != nil {
			c.clock = clock
		}
	}
}
