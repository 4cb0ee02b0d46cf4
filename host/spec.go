package host

import (
	"context"

	"github.com/aardvark-ui/bridge/channel"
	"github.com/aardvark-ui/bridge/domain/ports"
)

// ChannelSpec declares a named channel. The channel itself is only created
// during before create, against the engine being prepared.
type ChannelSpec struct {
	create func(ctx context.Context, engine ports.Engine, opts []channel.Option) (channel.Named, error)
	Name   string
}

// Typed declares a message channel using codec. The handler may be nil and
// installed later through channel.Lookup.
func Typed[T any](name string, codec channel.Codec[T], handler func(context.Context, T)) ChannelSpec {
	return ChannelSpec{
		Name: name,
		create: func(ctx context.Context, engine ports.Engine, opts []channel.Option) (channel.Named, error) {
			mc, err := channel.CreateMessageChannel(ctx, engine, name, codec, opts...)
			if err != nil {
				return nil, err
			}
			if handler != nil {
				mc.SetHandler(handler)
			}
			return mc, nil
		},
	}
}

// JSON declares a structured channel carrying channel.Object values.
func JSON(name string, handler func(context.Context, channel.Object)) ChannelSpec {
	return Typed(name, channel.JSON(), handler)
}

// Binary declares a raw byte channel.
func Binary(name string, handler channel.Handler) ChannelSpec {
	return ChannelSpec{
		Name: name,
		create: func(ctx context.Context, engine ports.Engine, opts []channel.Option) (channel.Named, error) {
			if handler != nil {
				opts = append(opts, channel.WithHandler(handler))
			}
			return channel.Create(ctx, engine, name, opts...)
		},
	}
}
