package wazero

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/aardvark-ui/bridge/internal/abi"
	bridgelog "github.com/aardvark-ui/bridge/log"
)

// DefaultHostModule is the import module name guests link against.
const DefaultHostModule = "bridge_host"

// CustomHandler is an additional host function exported next to
// channel_send and log_message.
type CustomHandler struct {
	// Handler is the wazero GoModuleFunc implementation.
	Handler api.GoModuleFunc

	// Name is the exported function name.
	Name string

	// ParamTypes are the WASM parameter types.
	ParamTypes []api.ValueType

	// ResultTypes are the WASM result types.
	ResultTypes []api.ValueType
}

// registerHostModule exports the host side of the channel ABI.
func (e *Engine) registerHostModule(ctx context.Context) error {
	builder := e.runtime.NewHostModuleBuilder(e.cfg.hostModule)

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.channelSend),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI64}, []api.ValueType{}).
		Export("channel_send")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(e.logMessage),
			[]api.ValueType{api.ValueTypeI64}, []api.ValueType{}).
		Export("log_message")

	for _, ch := range e.cfg.customHandlers {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(ch.Handler, ch.ParamTypes, ch.ResultTypes).
			Export(ch.Name)
	}

	_, err := builder.Instantiate(ctx)
	return err
}

// channelSend queues a guest message for delivery after the current call.
func (e *Engine) channelSend(ctx context.Context, mod api.Module, stack []uint64) {
	handle := api.DecodeU32(stack[0])
	data, err := abi.ReadBytes(mod.Memory(), stack[1], e.cfg.maxMessageSize)
	if err != nil {
		e.logger.ErrorContext(ctx, "engine message unreadable", "channel", handle, "error", err)
		return
	}

	e.stateMu.Lock()
	e.outbox = append(e.outbox, guestMessage{handle: handle, data: data})
	e.stateMu.Unlock()
}

// logMessage forwards a guest log record to the host logger.
func (e *Engine) logMessage(ctx context.Context, mod api.Module, stack []uint64) {
	payload, err := abi.ReadBytes(mod.Memory(), stack[0], e.cfg.maxMessageSize)
	if err != nil {
		e.logger.WarnContext(ctx, "engine log unreadable", "error", err)
		return
	}
	bridgelog.Forward(ctx, e.cfg.logger.With("engine", GetEngineName(ctx, mod)), payload)
}

// moduleConfig is the guest module configuration.
func (e *Engine) moduleConfig() wazero.ModuleConfig {
	cfg := wazero.NewModuleConfig().WithName(e.cfg.name)
	if e.cfg.stdout != nil {
		cfg = cfg.WithStdout(e.cfg.stdout)
	}
	if e.cfg.stderr != nil {
		cfg = cfg.WithStderr(e.cfg.stderr)
	}
	return cfg
}
