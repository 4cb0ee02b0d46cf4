package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aardvark-ui/bridge/domain/entities"
	"github.com/aardvark-ui/bridge/domain/ports"
)

// Names of the built-in message schemas.
const (
	PointerSchema = "pointer"
	TimerSchema   = "timer"
	ConfigSchema  = "config"
)

// registryConfig holds configuration for the Registry.
type registryConfig struct {
	strictMode bool // Fail on duplicate registrations
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		strictMode: true,
	}
}

// RegistryOption configures a Registry instance.
type RegistryOption func(*registryConfig)

// WithStrictMode enables/disables strict mode for duplicate registrations.
// Default is true (fail on duplicates).
func WithStrictMode(enabled bool) RegistryOption {
	return func(c *registryConfig) {
		c.strictMode = enabled
	}
}

// Registry implements ports.SchemaRegistry.
type Registry struct {
	config  registryConfig
	schemas sync.Map // map[string]string (json schema)
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry{config: cfg}
}

var _ ports.SchemaRegistry = (*Registry)(nil)

// DefaultRegistry returns a registry holding the pointer, timer and config schemas.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	// names are distinct, registration cannot fail
	_ = r.Register(PointerSchema, &entities.PointerEvent{})
	_ = r.Register(TimerSchema, &entities.TimerMessage{})
	_ = r.registerStrict(ConfigSchema, &entities.BridgeConfig{})
	return r
}

// Register adds a message schema generated from a Go struct.
func (r *Registry) Register(name string, model any) error {
	data, err := GenerateMessageSchema(model)
	if err != nil {
		return fmt.Errorf("failed to generate schema for %s: %w", name, err)
	}
	return r.store(name, data)
}

func (r *Registry) registerStrict(name string, model any) error {
	data, err := GenerateSchema(model)
	if err != nil {
		return fmt.Errorf("failed to generate schema for %s: %w", name, err)
	}
	return r.store(name, data)
}

func (r *Registry) store(name string, data []byte) error {
	if r.config.strictMode {
		if _, loaded := r.schemas.LoadOrStore(name, string(data)); loaded {
			return fmt.Errorf("schema %q already registered", name)
		}
		return nil
	}
	r.schemas.Store(name, string(data))
	return nil
}

// GetSchema retrieves the JSON Schema registered under name.
func (r *Registry) GetSchema(name string) (string, bool) {
	v, ok := r.schemas.Load(name)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// List returns all registered schema names, sorted.
func (r *Registry) List() []string {
	var keys []string
	r.schemas.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}
