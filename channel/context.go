package channel

import (
	"context"
)

// DeliveryContext wraps the owner context with details of the inbound
// message being handled.
type DeliveryContext interface {
	context.Context

	// Channel returns the name of the channel the message arrived on.
	Channel() string

	// Seq returns the per-channel arrival sequence number, starting at 1.
	Seq() uint64
}

type contextKey struct {
	name string
}

var deliveryKey = &contextKey{name: "delivery"}

type delivery struct {
	channel string
	seq     uint64
}

type deliveryContext struct {
	context.Context
	channel string
	seq     uint64
}

func newDeliveryContext(ctx context.Context, channel string, seq uint64) DeliveryContext {
	d := delivery{channel: channel, seq: seq}
	return &deliveryContext{Context: context.WithValue(ctx, deliveryKey, d), channel: channel, seq: seq}
}

func (c *deliveryContext) Channel() string {
	return c.channel
}

func (c *deliveryContext) Seq() uint64 {
	return c.seq
}

// DeliveryFrom extracts the DeliveryContext from a handler context. It also
// finds the delivery details through contexts derived from the one passed to
// the handler; the returned DeliveryContext then wraps ctx.
func DeliveryFrom(ctx context.Context) (DeliveryContext, bool) {
	if dc, ok := ctx.(DeliveryContext); ok {
		return dc, true
	}
	d, ok := ctx.Value(deliveryKey).(delivery)
	if !ok {
		return nil, false
	}
	return &deliveryContext{Context: ctx, channel: d.channel, seq: d.seq}, true
}
