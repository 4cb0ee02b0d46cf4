package wazero

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/aardvark-ui/bridge/domain/entities"
	"github.com/aardvark-ui/bridge/domain/errors"
	"github.com/aardvark-ui/bridge/domain/ports"
	"github.com/aardvark-ui/bridge/internal/abi"
)

// Guest export names.
const (
	exportAllocate      = "allocate"
	exportChannelCreate = "channel_create"
	exportChannelHandle = "channel_handle_message"
	exportChannelClose  = "channel_release"
	exportHostCreate    = "host_create"
	exportHostUpdate    = "host_update"
	exportHostDestroy   = "host_destroy"
	exportHostResize    = "host_resize"
	exportInitialize    = "_initialize"
)

var requiredExports = []string{
	exportAllocate,
	exportChannelCreate,
	exportChannelHandle,
	exportChannelClose,
	exportHostCreate,
	exportHostUpdate,
	exportHostDestroy,
}

// ErrGuestStatus is wrapped by errors for calls the guest answered with a non-zero status.
var ErrGuestStatus = stdErrors.New("guest returned failure status")

type engineConfig struct {
	logger         *slog.Logger
	stdout         io.Writer
	stderr         io.Writer
	name           string
	hostModule     string
	customHandlers []CustomHandler
	maxMessageSize uint32
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		logger:         slog.Default(),
		name:           "engine",
		hostModule:     DefaultHostModule,
		maxMessageSize: abi.DefaultMaxMessageSize,
	}
}

// Option configures the Engine.
type Option func(*engineConfig)

// WithLogger sets the logger. Guest log records are forwarded to it.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithName sets the guest module instance name (default: "engine").
func WithName(name string) Option {
	return func(c *engineConfig) {
		c.name = name
	}
}

// WithHostModule sets the host module name (default: "bridge_host").
func WithHostModule(name string) Option {
	return func(c *engineConfig) {
		c.hostModule = name
	}
}

// WithMaxMessageSize bounds a single payload read from guest memory.
func WithMaxMessageSize(size uint32) Option {
	return func(c *engineConfig) {
		c.maxMessageSize = size
	}
}

// WithCustomHandler exports an additional host function to the guest.
func WithCustomHandler(h CustomHandler) Option {
	return func(c *engineConfig) {
		c.customHandlers = append(c.customHandlers, h)
	}
}

// WithStdio wires the guest's WASI stdout and stderr.
func WithStdio(stdout, stderr io.Writer) Option {
	return func(c *engineConfig) {
		c.stdout = stdout
		c.stderr = stderr
	}
}

type guestMessage struct {
	data   []byte
	handle uint32
}

// Engine implements ports.Engine over a WebAssembly guest.
type Engine struct {
	runtime  wazero.Runtime
	module   api.Module
	logger   *slog.Logger
	channels map[uint32]ports.BoundChannel
	hosts    map[uint32]struct{}
	outbox   []guestMessage
	cfg      engineConfig
	// callMu serializes calls into the guest.
	callMu  sync.Mutex
	stateMu sync.Mutex
	closed  bool
}

var (
	_ ports.Engine       = (*Engine)(nil)
	_ ports.Resizer      = (*Engine)(nil)
	_ ports.EngineCloser = (*Engine)(nil)
)

// New compiles and instantiates wasmBytes and checks that it exports the
// channel ABI.
func New(ctx context.Context, wasmBytes []byte, opts ...Option) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	e := &Engine{
		cfg:      cfg,
		logger:   cfg.logger.With("engine", cfg.name),
		channels: make(map[uint32]ports.BoundChannel),
		hosts:    make(map[uint32]struct{}),
	}

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	e.runtime = rt

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate wasi: %w", err)
	}
	if err := e.registerHostModule(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	mod, err := rt.InstantiateWithConfig(WithEngineName(ctx, cfg.name), wasmBytes, e.moduleConfig())
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}
	e.module = mod

	if err := e.checkExports(); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}

	if init := mod.ExportedFunction(exportInitialize); init != nil {
		if _, err := e.call(ctx, exportInitialize); err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("failed to call _initialize: %w", err)
		}
	}

	e.logger.DebugContext(ctx, "engine module loaded", "size", len(wasmBytes))
	return e, nil
}

func (e *Engine) checkExports() error {
	var missing []string
	if e.module.ExportedMemory("memory") == nil {
		missing = append(missing, "memory")
	}
	for _, name := range requiredExports {
		if e.module.ExportedFunction(name) == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("engine module is missing exports: %s", strings.Join(missing, ", "))
	}
	return nil
}

// call invokes a guest export, then hands whatever the guest sent during
// the call to the bound channels. Delivery happens after callMu is released
// so channel handlers may call back into the engine.
func (e *Engine) call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	e.callMu.Lock()
	if e.closed {
		e.callMu.Unlock()
		return nil, fmt.Errorf("engine closed: %w", errors.ErrInvalidHandle)
	}
	results, outbox, err := e.callLocked(ctx, name, params...)
	e.callMu.Unlock()

	e.flush(ctx, outbox)
	return results, err
}

// callWithPayload writes data into guest memory and calls name with the
// leading params followed by the packed payload. callMu is held from the
// allocation until the call returns. The guest's sends are returned, not
// flushed.
func (e *Engine) callWithPayload(ctx context.Context, name string, data []byte, params ...uint64) ([]uint64, []guestMessage, error) {
	e.callMu.Lock()
	defer e.callMu.Unlock()
	if e.closed {
		return nil, nil, fmt.Errorf("engine closed: %w", errors.ErrInvalidHandle)
	}
	packed, err := abi.WriteBytes(ctx, e.module.Memory(), e.allocate, data)
	if err != nil {
		return nil, e.takeOutbox(), err
	}
	return e.callLocked(ctx, name, append(params, packed)...)
}

// callLocked must be called with callMu held.
func (e *Engine) callLocked(ctx context.Context, name string, params ...uint64) ([]uint64, []guestMessage, error) {
	fn := e.module.ExportedFunction(name)
	if fn == nil {
		return nil, nil, fmt.Errorf("export %q not found", name)
	}
	results, err := fn.Call(WithEngineName(ctx, e.cfg.name), params...)
	return results, e.takeOutbox(), err
}

func (e *Engine) takeOutbox() []guestMessage {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	outbox := e.outbox
	e.outbox = nil
	return outbox
}

// allocate must be called with callMu held.
func (e *Engine) allocate(ctx context.Context, size uint32) (uint32, error) {
	results, err := e.module.ExportedFunction(exportAllocate).Call(ctx, api.EncodeU32(size))
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, stdErrors.New("allocate returned no results")
	}
	return api.DecodeU32(results[0]), nil
}

func (e *Engine) flush(ctx context.Context, outbox []guestMessage) {
	for _, msg := range outbox {
		e.stateMu.Lock()
		bound, ok := e.channels[msg.handle]
		e.stateMu.Unlock()
		if !ok {
			e.logger.WarnContext(ctx, "engine sent on unknown channel", "channel", msg.handle, "size", len(msg.data))
			continue
		}
		bound.OnNativeMessage(msg.data)
	}
}

func status(results []uint64, err error) error {
	if err != nil {
		return err
	}
	if len(results) > 0 {
		if code := api.DecodeI32(results[0]); code != 0 {
			return fmt.Errorf("%w: %d", ErrGuestStatus, code)
		}
	}
	return nil
}

func handleResult(results []uint64, err error) (uint32, error) {
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, errors.ErrInvalidHandle
	}
	h := api.DecodeU32(results[0])
	if h == 0 {
		return 0, fmt.Errorf("%w: guest returned handle 0", errors.ErrInvalidHandle)
	}
	return h, nil
}

func u32(v uint64) uint32 {
	return uint32(v) //nolint:gosec // G115: handles are issued by the guest as i32
}

// CreateChannel implements ports.Engine. The channel is bound before
// anything the guest sent during channel_create is delivered, so sends on
// the new handle reach it.
func (e *Engine) CreateChannel(ctx context.Context, ch ports.BoundChannel) (ports.ChannelHandle, error) {
	results, outbox, err := e.callWithPayload(ctx, exportChannelCreate, []byte(ch.Name()))
	h, err := handleResult(results, err)
	if err != nil {
		e.flush(ctx, outbox)
		return ports.ChannelHandle{}, err
	}

	e.stateMu.Lock()
	_, dup := e.channels[h]
	if !dup {
		e.channels[h] = ch
	}
	e.stateMu.Unlock()

	if dup {
		e.flush(ctx, dropHandle(outbox, h))
		if err := status(e.call(ctx, exportChannelClose, api.EncodeU32(h))); err != nil {
			e.logger.WarnContext(ctx, "failed to release rejected channel", "channel", h, "name", ch.Name(), "error", err)
		}
		return ports.ChannelHandle{}, fmt.Errorf("guest reused live channel handle %d: %w", h, errors.ErrInvalidHandle)
	}

	e.flush(ctx, outbox)
	return ports.NewChannelHandle(uint64(h)), nil
}

// dropHandle removes the messages sent on h.
func dropHandle(outbox []guestMessage, h uint32) []guestMessage {
	kept := outbox[:0]
	for _, msg := range outbox {
		if msg.handle != h {
			kept = append(kept, msg)
		}
	}
	return kept
}

func (e *Engine) liveChannel(h ports.ChannelHandle) (uint32, error) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	id := u32(h.Value())
	if _, ok := e.channels[id]; !ok || uint64(id) != h.Value() {
		return 0, fmt.Errorf("%s: %w", h, errors.ErrInvalidHandle)
	}
	return id, nil
}

// DeliverMessage implements ports.Engine.
func (e *Engine) DeliverMessage(ctx context.Context, h ports.ChannelHandle, data []byte) error {
	id, err := e.liveChannel(h)
	if err != nil {
		return err
	}
	results, outbox, err := e.callWithPayload(ctx, exportChannelHandle, data, api.EncodeU32(id))
	e.flush(ctx, outbox)
	return status(results, err)
}

// ReleaseChannel implements ports.Engine. The handle is forgotten even when
// the guest reports a failure.
func (e *Engine) ReleaseChannel(ctx context.Context, h ports.ChannelHandle) error {
	id, err := e.liveChannel(h)
	if err != nil {
		return err
	}
	e.stateMu.Lock()
	delete(e.channels, id)
	e.stateMu.Unlock()
	return status(e.call(ctx, exportChannelClose, api.EncodeU32(id)))
}

// CreateHost implements ports.Engine.
func (e *Engine) CreateHost(ctx context.Context, primary ports.ChannelHandle, surface entities.Surface) (ports.HostHandle, error) {
	id, err := e.liveChannel(primary)
	if err != nil {
		return ports.HostHandle{}, fmt.Errorf("primary channel: %w", err)
	}
	h, err := handleResult(e.call(ctx, exportHostCreate,
		api.EncodeU32(id), api.EncodeI32(int32(surface.Width)), api.EncodeI32(int32(surface.Height)))) //nolint:gosec // G115: surface sizes fit in i32
	if err != nil {
		return ports.HostHandle{}, err
	}

	e.stateMu.Lock()
	e.hosts[h] = struct{}{}
	e.stateMu.Unlock()
	return ports.NewHostHandle(uint64(h)), nil
}

func (e *Engine) liveHost(h ports.HostHandle) (uint32, error) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	id := u32(h.Value())
	if _, ok := e.hosts[id]; !ok || uint64(id) != h.Value() {
		return 0, fmt.Errorf("%s: %w", h, errors.ErrInvalidHandle)
	}
	return id, nil
}

// UpdateHost implements ports.Engine.
func (e *Engine) UpdateHost(ctx context.Context, h ports.HostHandle) error {
	id, err := e.liveHost(h)
	if err != nil {
		return err
	}
	return status(e.call(ctx, exportHostUpdate, api.EncodeU32(id)))
}

// DestroyHost implements ports.Engine.
func (e *Engine) DestroyHost(ctx context.Context, h ports.HostHandle) error {
	id, err := e.liveHost(h)
	if err != nil {
		return err
	}
	e.stateMu.Lock()
	delete(e.hosts, id)
	e.stateMu.Unlock()
	return status(e.call(ctx, exportHostDestroy, api.EncodeU32(id)))
}

// ResizeHost implements ports.Resizer. Guests without a host_resize export
// keep their current size and the call succeeds.
func (e *Engine) ResizeHost(ctx context.Context, h ports.HostHandle, surface entities.Surface) error {
	id, err := e.liveHost(h)
	if err != nil {
		return err
	}
	if e.module.ExportedFunction(exportHostResize) == nil {
		e.logger.DebugContext(ctx, "engine has no resize export, ignoring", "surface", surface.String())
		return nil
	}
	return status(e.call(ctx, exportHostResize,
		api.EncodeU32(id), api.EncodeI32(int32(surface.Width)), api.EncodeI32(int32(surface.Height)))) //nolint:gosec // G115: surface sizes fit in i32
}

// Close releases the runtime. Handles issued before are invalid afterwards.
func (e *Engine) Close(ctx context.Context) error {
	e.callMu.Lock()
	defer e.callMu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.runtime.Close(ctx)
}
