package cli

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/aardvark-ui/bridge/channel"
	"github.com/aardvark-ui/bridge/domain/entities"
	"github.com/aardvark-ui/bridge/domain/errors"
	"github.com/aardvark-ui/bridge/host"
	bridgelog "github.com/aardvark-ui/bridge/log"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	Input string
	Ticks int
}

// InboundMessage is printed for every message the engine sends to the host.
type InboundMessage struct {
	Message any    `json:"message"`
	Channel string `json:"channel"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	runOpts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Run an engine host and feed it scripted events",
		Long: `Create the channels and the engine host declared in the configuration,
then read events from the input, one JSON object per line:

  {"type":"pointer","x":120.5,"y":64,"action":2}
  {"type":"send","channel":"ui","data":{"op":"ping"}}
  {"type":"resize","width":1024,"height":768}
  {"type":"tick"}

The host is updated once after every event and --ticks more times at the
end of the input. Messages from the engine are printed as JSON lines.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(rootOpts, runOpts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&runOpts.Input, "input", "i", "-", "event file (- for stdin)")
	cmd.Flags().IntVar(&runOpts.Ticks, "ticks", 2, "updates to run after the input is exhausted")

	return cmd
}

func runRun(opts *RootOptions, runOpts *RunOptions, configPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if runOpts.Ticks < 0 {
		return outputRunError(formatter, ErrCodeGeneric, ExitCommandError, fmt.Errorf("--ticks must not be negative, got %d", runOpts.Ticks))
	}

	cfg, err := loadConfigFile(configPath)
	if err != nil {
		return outputConfigError(formatter, err)
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}

	var logOpts []bridgelog.SetupOption
	if cfg.Log.File == "" {
		logOpts = append(logOpts, bridgelog.WithOutput(cmd.ErrOrStderr()))
	}
	logger, syncLog, err := bridgelog.Setup(cfg.Log, logOpts...)
	if err != nil {
		return outputRunError(formatter, ErrCodeConfig, ExitCommandError, err)
	}
	defer func() { _ = syncLog() }()

	input, closeInput, err := openInput(runOpts.Input, cmd.InOrStdin())
	if err != nil {
		return outputRunError(formatter, ErrCodeNotFound, ExitCommandError, err)
	}
	defer closeInput()

	eng, closeEngine, err := openEngine(ctx, cfg.Engine, filepath.Dir(configPath), logger, cmd.ErrOrStderr())
	if err != nil {
		return outputRunError(formatter, ErrCodeEngine, ExitCommandError, err)
	}
	defer func() {
		if err := closeEngine(ctx); err != nil {
			logger.WarnContext(ctx, "engine close failed", "error", err)
		}
	}()

	printer := newInboundPrinter(cmd.OutOrStdout(), logger)
	hostOpts, err := host.OptionsFromConfig(cfg)
	if err != nil {
		return outputConfigError(formatter, err)
	}
	hostOpts = append(hostOpts,
		host.WithLogger(logger),
		host.WithSystemHandler(printMessages[channel.Object](printer, entities.SystemChannel)),
	)
	ctrl := host.NewController(eng, hostOpts...)

	if err := ctrl.BeforeCreate(ctx); err != nil {
		return outputRunError(formatter, ErrCodeEngine, ExitCommandError, err)
	}
	chans, _ := ctrl.Channels()
	printer.attach(chans.Registry)

	if err := ctrl.EngineCreate(ctx, cfg.Surface); err != nil {
		_ = ctrl.Destroy(ctx)
		return outputRunError(formatter, ErrCodeEngine, ExitCommandError, err)
	}
	formatter.VerboseLog("Host created on %s surface with channels %v", cfg.Surface, chans.Registry.Names())

	parser := newEventParser(cfg)
	runErr := parser.scanEvents(input, func(ev Event) error {
		if err := applyEvent(ctx, ctrl, ev); err != nil {
			return err
		}
		return ctrl.Update(ctx)
	})
	if runErr == nil {
		for range runOpts.Ticks {
			if runErr = ctrl.Update(ctx); runErr != nil {
				break
			}
		}
	}

	updates := ctrl.Host().Updates()
	if err := ctrl.Destroy(ctx); err != nil && runErr == nil {
		runErr = err
	}
	formatter.VerboseLog("Host destroyed after %d update(s), %d message(s) received", updates, printer.count())

	if runErr != nil {
		var eventErr *EventError
		if stdErrors.As(runErr, &eventErr) && !isEngineFailure(eventErr.Err) {
			return outputRunError(formatter, ErrCodeEvents, ExitFailure, runErr)
		}
		return outputRunError(formatter, ErrCodeEngine, ExitCommandError, runErr)
	}
	return nil
}

func applyEvent(ctx context.Context, ctrl *host.Controller, ev Event) error {
	h := ctrl.Host()
	switch ev.Type {
	case EventPointer:
		return h.SendPointer(entities.PointerEvent{X: ev.X, Y: ev.Y, Action: entities.PointerAction(ev.Action)})
	case EventSend:
		return sendData(h, ev.Channel, ev.Data)
	case EventResize:
		return ctrl.SurfaceChanged(ctx, entities.NewSurface(ev.Width, ev.Height))
	default:
		return nil
	}
}

// sendData decodes data for the message type the named channel carries.
func sendData(h *host.Host, name string, data json.RawMessage) error {
	reg := h.Channels().Registry
	if _, ok := channel.Lookup[channel.Object](reg, name); ok {
		var obj channel.Object
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("channel %q expects an object: %w", name, err)
		}
		return host.Send(h, name, obj)
	}
	if _, ok := channel.Lookup[string](reg, name); ok {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("channel %q expects a string: %w", name, err)
		}
		return host.Send(h, name, s)
	}
	if _, ok := channel.Lookup[entities.TimerMessage](reg, name); ok {
		var msg entities.TimerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("channel %q expects a timer message: %w", name, err)
		}
		return host.Send(h, name, msg)
	}
	if bc, ok := reg.Binary(name); ok {
		return bc.Post(data)
	}
	return fmt.Errorf("%w: %q", host.ErrUnknownChannel, name)
}

func isEngineFailure(err error) bool {
	var engErr *errors.EngineError
	return stdErrors.As(err, &engErr)
}

func loadConfigFile(path string) (*entities.BridgeConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return host.NewLoader().LoadConfig(raw)
}

func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func outputConfigError(f *OutputFormatter, err error) error {
	var pathErr *fs.PathError
	if stdErrors.As(err, &pathErr) {
		_ = f.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "configuration not loaded", err)
	}
	_ = f.Error(ErrCodeConfig, err.Error(), errors.ToErrorDetail(err))
	return WrapExitError(ExitFailure, "invalid configuration", err)
}

func outputRunError(f *OutputFormatter, code string, exit int, err error) error {
	_ = f.Error(code, err.Error(), errors.ToErrorDetail(err))
	return WrapExitError(exit, "run failed", err)
}

// inboundPrinter writes engine messages to the output as JSON lines.
type inboundPrinter struct {
	enc      *json.Encoder
	logger   *slog.Logger
	received int
	mu       sync.Mutex
}

func newInboundPrinter(w io.Writer, logger *slog.Logger) *inboundPrinter {
	return &inboundPrinter{enc: json.NewEncoder(w), logger: logger}
}

func (p *inboundPrinter) print(name string, msg any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received++
	if err := p.enc.Encode(InboundMessage{Channel: name, Message: msg}); err != nil {
		p.logger.Error("failed to print inbound message", "channel", name, "error", err)
	}
}

func (p *inboundPrinter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.received
}

// attach installs printers on every declared channel. The system channel
// is printed through its own handler and the timers channel belongs to the
// timer service.
func (p *inboundPrinter) attach(reg *channel.Registry) {
	for _, name := range reg.Names() {
		if name == entities.SystemChannel || name == entities.TimersChannel {
			continue
		}
		if mc, ok := channel.Lookup[channel.Object](reg, name); ok {
			mc.SetHandler(printMessages[channel.Object](p, name))
			continue
		}
		if mc, ok := channel.Lookup[string](reg, name); ok {
			mc.SetHandler(printMessages[string](p, name))
			continue
		}
		if bc, ok := reg.Binary(name); ok {
			bc.SetHandler(func(_ context.Context, buf *channel.BinaryBuffer) {
				p.print(name, buf.Clone())
			})
		}
	}
}

func printMessages[T any](p *inboundPrinter, name string) func(context.Context, T) {
	return func(_ context.Context, msg T) {
		p.print(name, msg)
	}
}
