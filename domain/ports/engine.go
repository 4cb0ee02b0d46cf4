package ports

import (
	"context"

	"github.com/aardvark-ui/bridge/domain/entities"
)

// BoundChannel is the host side of a channel as seen by the engine.
// The engine calls OnNativeMessage to deliver bytes outbound to the host.
// OnNativeMessage may be called from any goroutine and must not block;
// the data slice is only valid for the duration of the call.
type BoundChannel interface {
	Name() string
	OnNativeMessage(data []byte)
}

// Engine is the native side of the bridge.
//
// CreateChannel must be called exactly once per channel and is the only point
// at which the engine-side counterpart is created. DeliverMessage is
// fire-and-forget: the engine may process it synchronously or later and never
// acknowledges it. CreateHost receives the primary channel so the engine can
// talk back to the host before the first update.
type Engine interface {
	CreateChannel(ctx context.Context, ch BoundChannel) (ChannelHandle, error)
	DeliverMessage(ctx context.Context, ch ChannelHandle, data []byte) error
	ReleaseChannel(ctx context.Context, ch ChannelHandle) error

	CreateHost(ctx context.Context, primary ChannelHandle, surface entities.Surface) (HostHandle, error)
	UpdateHost(ctx context.Context, h HostHandle) error
	DestroyHost(ctx context.Context, h HostHandle) error
}

// Resizer is implemented by engines that accept surface changes on a live host.
type Resizer interface {
	ResizeHost(ctx context.Context, h HostHandle, surface entities.Surface) error
}

// EngineCloser is implemented by engines holding process resources
// (a wasm runtime, files) that must be released after the last host is destroyed.
type EngineCloser interface {
	Close(ctx context.Context) error
}
