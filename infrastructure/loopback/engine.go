// Package loopback provides an in-process engine that needs no native code.
// It pairs channels, records every call, can echo payloads back to the host,
// and runs per-channel scripts in place of real engine logic.
package loopback

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aardvark-ui/bridge/domain/entities"
	"github.com/aardvark-ui/bridge/domain/errors"
	"github.com/aardvark-ui/bridge/domain/ports"
	bridgelog "github.com/aardvark-ui/bridge/log"
)

// Reply sends a payload from the engine back to the host on the same channel.
type Reply func(data []byte)

// Script is engine logic for one channel name. It runs on the goroutine
// that delivered the message.
type Script func(ctx context.Context, data []byte, reply Reply)

type channelState struct {
	bound    ports.BoundChannel
	name     string
	received [][]byte
	released bool
}

// HostState is a snapshot of a host created on the engine.
type HostState struct {
	Surface   entities.Surface
	Primary   string
	Updates   int
	Resizes   int
	Destroyed bool
}

// Engine implements ports.Engine and ports.Resizer in memory.
type Engine struct {
	logger   *slog.Logger
	scripts  map[string]Script
	failures map[string]error
	channels map[uint64]*channelState
	hosts    map[uint64]*HostState
	calls    []string
	pending  []pendingEmit
	nextID   uint64
	mu       sync.Mutex
	echo     bool
}

type pendingEmit struct {
	channel string
	data    []byte
}

var (
	_ ports.Engine  = (*Engine)(nil)
	_ ports.Resizer = (*Engine)(nil)
)

// Operation names accepted by WithFailure.
const (
	OpCreateChannel  = "create_channel"
	OpDeliverMessage = "deliver_message"
	OpReleaseChannel = "release_channel"
	OpCreateHost     = "create_host"
	OpUpdateHost     = "update_host"
	OpDestroyHost    = "destroy_host"
	OpResizeHost     = "resize_host"
)

// Option configures the loopback engine.
type Option func(*Engine)

// WithEcho makes the engine send every delivered payload back unchanged,
// unless a script is registered for the channel.
func WithEcho(echo bool) Option {
	return func(e *Engine) {
		e.echo = echo
	}
}

// WithScript installs engine logic for the channel named name.
func WithScript(name string, s Script) Option {
	return func(e *Engine) {
		e.scripts[name] = s
	}
}

// WithFailure makes op fail with err. For OpCreateChannel the failure can be
// limited to one channel with "create_channel:<name>".
func WithFailure(op string, err error) Option {
	return func(e *Engine) {
		e.failures[op] = err
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates a loopback engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:   slog.Default(),
		scripts:  make(map[string]Script),
		failures: make(map[string]error),
		channels: make(map[uint64]*channelState),
		hosts:    make(map[uint64]*HostState),
	}
	for _, opt := range opts {
		opt(e)
	}

	// engine-side records travel in wire form, as a guest's would
	hostLogger := e.logger.With("engine", "loopback")
	e.logger = slog.New(bridgelog.NewHandler(func(payload []byte) {
		bridgelog.Forward(context.Background(), hostLogger, payload)
	}, bridgelog.WithLevel(slog.LevelDebug)))
	return e
}

func (e *Engine) record(call string) {
	e.calls = append(e.calls, call)
}

func (e *Engine) failure(op string) error {
	return e.failures[op]
}

// CreateChannel implements ports.Engine.
func (e *Engine) CreateChannel(ctx context.Context, ch ports.BoundChannel) (ports.ChannelHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	name := ch.Name()
	e.record(OpCreateChannel + ":" + name)
	if err := e.failure(OpCreateChannel); err != nil {
		return ports.ChannelHandle{}, err
	}
	if err := e.failure(OpCreateChannel + ":" + name); err != nil {
		return ports.ChannelHandle{}, err
	}

	e.nextID++
	e.channels[e.nextID] = &channelState{bound: ch, name: name}
	return ports.NewChannelHandle(e.nextID), nil
}

func (e *Engine) liveChannel(h ports.ChannelHandle) (*channelState, error) {
	st, ok := e.channels[h.Value()]
	if !ok || st.released {
		return nil, fmt.Errorf("%s: %w", h, errors.ErrInvalidHandle)
	}
	return st, nil
}

// DeliverMessage implements ports.Engine.
func (e *Engine) DeliverMessage(ctx context.Context, h ports.ChannelHandle, data []byte) error {
	e.mu.Lock()
	st, err := e.liveChannel(h)
	if err == nil {
		err = e.failure(OpDeliverMessage)
	}
	if err != nil {
		e.mu.Unlock()
		return err
	}
	msg := bytes.Clone(data)
	st.received = append(st.received, msg)
	script := e.scripts[st.name]
	echo := e.echo
	bound := st.bound
	e.mu.Unlock()

	// engine replies are delivered without holding the lock so the host side
	// may call back into the engine
	reply := func(out []byte) { bound.OnNativeMessage(out) }
	switch {
	case script != nil:
		script(ctx, msg, reply)
	case echo:
		reply(msg)
	}
	return nil
}

// ReleaseChannel implements ports.Engine.
func (e *Engine) ReleaseChannel(ctx context.Context, h ports.ChannelHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.liveChannel(h)
	if err != nil {
		return err
	}
	e.record(OpReleaseChannel + ":" + st.name)
	if err := e.failure(OpReleaseChannel); err != nil {
		return err
	}
	st.released = true
	return nil
}

// CreateHost implements ports.Engine.
func (e *Engine) CreateHost(ctx context.Context, primary ports.ChannelHandle, surface entities.Surface) (ports.HostHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.record(OpCreateHost)
	st, err := e.liveChannel(primary)
	if err != nil {
		return ports.HostHandle{}, fmt.Errorf("primary channel: %w", err)
	}
	if err := e.failure(OpCreateHost); err != nil {
		return ports.HostHandle{}, err
	}

	e.nextID++
	e.hosts[e.nextID] = &HostState{Surface: surface, Primary: st.name}
	e.logger.DebugContext(ctx, "loopback host created", "surface", surface.String(), "primary", st.name)
	return ports.NewHostHandle(e.nextID), nil
}

func (e *Engine) liveHost(h ports.HostHandle) (*HostState, error) {
	st, ok := e.hosts[h.Value()]
	if !ok || st.Destroyed {
		return nil, fmt.Errorf("%s: %w", h, errors.ErrInvalidHandle)
	}
	return st, nil
}

// UpdateHost implements ports.Engine. Payloads queued with EmitOnUpdate are
// sent to the host during the update.
func (e *Engine) UpdateHost(ctx context.Context, h ports.HostHandle) error {
	e.mu.Lock()
	st, err := e.liveHost(h)
	if err == nil {
		err = e.failure(OpUpdateHost)
	}
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.record(OpUpdateHost)
	st.Updates++
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()

	for _, p := range pending {
		if err := e.Emit(p.channel, p.data); err != nil {
			e.logger.WarnContext(ctx, "loopback emit failed", "channel", p.channel, "error", err)
		}
	}
	return nil
}

// DestroyHost implements ports.Engine.
func (e *Engine) DestroyHost(ctx context.Context, h ports.HostHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.liveHost(h)
	if err != nil {
		return err
	}
	e.record(OpDestroyHost)
	if err := e.failure(OpDestroyHost); err != nil {
		return err
	}
	st.Destroyed = true
	return nil
}

// ResizeHost implements ports.Resizer.
func (e *Engine) ResizeHost(ctx context.Context, h ports.HostHandle, surface entities.Surface) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.liveHost(h)
	if err != nil {
		return err
	}
	e.record(OpResizeHost)
	if err := e.failure(OpResizeHost); err != nil {
		return err
	}
	st.Surface = surface
	st.Resizes++
	return nil
}

// Emit sends data from the engine to the host on the most recently created
// live channel named name. Safe to call from any goroutine.
func (e *Engine) Emit(name string, data []byte) error {
	e.mu.Lock()
	var target *channelState
	var best uint64
	for id, st := range e.channels {
		if st.name == name && !st.released && id > best {
			best, target = id, st
		}
	}
	e.mu.Unlock()

	if target == nil {
		return fmt.Errorf("no live channel %q: %w", name, errors.ErrInvalidHandle)
	}
	target.bound.OnNativeMessage(data)
	return nil
}

// EmitOnUpdate queues data to be emitted during the next UpdateHost.
func (e *Engine) EmitOnUpdate(name string, data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, pendingEmit{channel: name, data: bytes.Clone(data)})
}

// Received returns the payloads delivered to channels named name, in order.
func (e *Engine) Received(name string) [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out [][]byte
	for id := uint64(1); id <= e.nextID; id++ {
		if st, ok := e.channels[id]; ok && st.name == name {
			for _, m := range st.received {
				out = append(out, bytes.Clone(m))
			}
		}
	}
	return out
}

// LiveChannels returns the number of live channels named name.
func (e *Engine) LiveChannels(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, st := range e.channels {
		if st.name == name && !st.released {
			n++
		}
	}
	return n
}

// Host returns a snapshot of the host behind h.
func (e *Engine) Host(h ports.HostHandle) (HostState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.hosts[h.Value()]
	if !ok {
		return HostState{}, false
	}
	return *st, true
}

// Calls returns the engine call log, e.g. "create_channel:system", "create_host".
func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	copy(out, e.calls)
	return out
}
