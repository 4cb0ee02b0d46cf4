package log

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/aardvark-ui/bridge/domain/entities"
)

// setupConfig holds options for Setup.
type setupConfig struct {
	output io.Writer
}

// SetupOption configures Setup.
type SetupOption func(*setupConfig)

// WithOutput writes logs to w instead of stderr or the configured file.
func WithOutput(w io.Writer) SetupOption {
	return func(c *setupConfig) {
		c.output = w
	}
}

// Setup builds the process logger from c: a zap core with a console or JSON
// encoder, rotated through lumberjack when a file is configured, exposed as
// a *slog.Logger. The returned sync function flushes buffered output.
func Setup(c entities.LogConfig, opts ...SetupOption) (*slog.Logger, func() error, error) {
	cfg := setupConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	level := zap.NewAtomicLevel()
	switch strings.ToLower(c.Level) {
	case "debug":
		level.SetLevel(zap.DebugLevel)
	case "warn", "warning":
		level.SetLevel(zap.WarnLevel)
	case "error":
		level.SetLevel(zap.ErrorLevel)
	default:
		level.SetLevel(zap.InfoLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if strings.ToLower(c.Format) == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	var ws zapcore.WriteSyncer
	switch {
	case cfg.output != nil:
		ws = zapcore.AddSync(cfg.output)
	case c.File != "":
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    max(c.MaxSizeMB, 1),
			MaxBackups: max(c.MaxBackups, 0),
		})
	default:
		ws = zapcore.Lock(os.Stderr)
	}

	core := zapcore.NewCore(encoder, ws, level)
	handler := zapslog.NewHandler(core, zapslog.WithCaller(level.Enabled(zap.DebugLevel)))
	return slog.New(handler), ws.Sync, nil
}
