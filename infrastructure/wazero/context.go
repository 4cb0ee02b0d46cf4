package wazero

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// contextKey is a private type for context keys.
type contextKey struct {
	name string
}

var engineNameKey = &contextKey{name: "engine_name"}

// WithEngineName adds the engine name to the context. Host functions use it
// to label what the guest logs.
func WithEngineName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, engineNameKey, name)
}

// EngineNameFromContext retrieves the engine name from the context.
func EngineNameFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(engineNameKey).(string)
	return name, ok
}

// GetEngineName extracts the engine name from context, falling back to the module name.
func GetEngineName(ctx context.Context, mod api.Module) string {
	if name, ok := EngineNameFromContext(ctx); ok {
		return name
	}
	return mod.Name()
}
