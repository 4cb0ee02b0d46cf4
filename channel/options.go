package channel

import "log/slog"

// Option configures a BinaryChannel at construction.
type Option func(*channelConfig)

type channelConfig struct {
	logger     *slog.Logger
	dispatcher *Dispatcher
	handler    Handler
	middleware []Middleware
}

func defaultChannelConfig() channelConfig {
	return channelConfig{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger used for drops and handler failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *channelConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDispatcher routes inbound deliveries through d so handlers run on
// d's owner goroutine. Without a dispatcher, handlers run on the goroutine
// that calls OnNativeMessage.
func WithDispatcher(d *Dispatcher) Option {
	return func(c *channelConfig) {
		c.dispatcher = d
	}
}

// WithHandler installs h before the engine counterpart exists, so no early
// message can miss it.
func WithHandler(h Handler) Option {
	return func(c *channelConfig) {
		c.handler = h
	}
}

// WithMiddleware appends middleware applied to every handler installed on the
// channel. Panic recovery is always the outermost layer.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *channelConfig) {
		c.middleware = append(c.middleware, mw...)
	}
}
