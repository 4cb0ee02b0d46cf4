package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/wippyai/wasm-runtime/wat"

	"github.com/aardvark-ui/bridge/domain/entities"
	"github.com/aardvark-ui/bridge/domain/ports"
	"github.com/aardvark-ui/bridge/infrastructure/loopback"
	"github.com/aardvark-ui/bridge/infrastructure/wazero"
)

// closeFunc releases engine resources once the host is destroyed.
type closeFunc func(ctx context.Context) error

func noClose(context.Context) error { return nil }

// openEngine builds the engine selected by cfg. Module paths are resolved
// against baseDir, the directory holding the configuration file.
func openEngine(ctx context.Context, cfg entities.EngineConfig, baseDir string, logger *slog.Logger, stdio io.Writer) (ports.Engine, closeFunc, error) {
	switch cfg.Kind {
	case entities.EngineLoopback:
		eng := loopback.New(loopback.WithEcho(cfg.Echo), loopback.WithLogger(logger))
		return eng, noClose, nil
	case entities.EngineWASM:
		wasm, err := loadModule(resolvePath(baseDir, cfg.Module))
		if err != nil {
			return nil, nil, err
		}
		name := strings.TrimSuffix(filepath.Base(cfg.Module), filepath.Ext(cfg.Module))
		eng, err := wazero.New(ctx, wasm,
			wazero.WithLogger(logger),
			wazero.WithName(name),
			wazero.WithStdio(stdio, stdio),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to instantiate engine module: %w", err)
		}
		return eng, eng.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown engine kind %q", cfg.Kind)
	}
}

// loadModule reads a compiled .wasm module, or compiles a .wat text module.
func loadModule(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read engine module: %w", err)
	}
	if !strings.EqualFold(filepath.Ext(path), ".wat") {
		return data, nil
	}
	wasm, err := wat.Compile(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", filepath.Base(path), err)
	}
	return wasm, nil
}

func resolvePath(baseDir, path string) string {
	if filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}
