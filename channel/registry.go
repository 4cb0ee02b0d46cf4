package channel

import (
	"context"
	stdErrors "errors"
	"fmt"
	"sort"
)

// Named is any channel that can be held by a Registry.
// Both *BinaryChannel and *MessageChannel[T] implement it.
type Named interface {
	Name() string
	Binary() *BinaryChannel
	Release(ctx context.Context) error
}

// Registry is an immutable name to channel mapping.
// Once created via NewRegistry, channels cannot be added or removed, so
// lookups are lock-free and return the same instance for the registry's life.
type Registry struct {
	channels map[string]Named
	names    []string // sorted for consistent iteration
}

// RegistryOption is a functional option for building a Registry.
type RegistryOption func(*registryBuilder)

type registryBuilder struct {
	channels map[string]Named
	errors   []error
}

// NewRegistry creates an immutable Registry.
// Returns an error if a name is registered twice.
//
//	reg, err := channel.NewRegistry(
//	    channel.WithChannel(system),
//	    channel.WithChannel(timers),
//	)
func NewRegistry(opts ...RegistryOption) (*Registry, error) {
	b := &registryBuilder{
		channels: make(map[string]Named),
	}

	for _, opt := range opts {
		opt(b)
	}

	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	names := make([]string, 0, len(b.channels))
	for name := range b.channels {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Registry{
		channels: b.channels,
		names:    names,
	}, nil
}

// WithChannel registers ch under its name.
func WithChannel(ch Named) RegistryOption {
	return func(b *registryBuilder) {
		if ch == nil {
			b.errors = append(b.errors, fmt.Errorf("channel cannot be nil"))
			return
		}
		name := ch.Name()
		if name == "" {
			b.errors = append(b.errors, fmt.Errorf("channel name cannot be empty"))
			return
		}
		if _, exists := b.channels[name]; exists {
			b.errors = append(b.errors, fmt.Errorf("duplicate channel name: %q", name))
			return
		}
		b.channels[name] = ch
	}
}

// Get returns the channel registered under name.
func (r *Registry) Get(name string) (Named, bool) {
	if r == nil {
		return nil, false
	}
	ch, ok := r.channels[name]
	return ch, ok
}

// Binary returns the transport of the channel registered under name.
func (r *Registry) Binary(name string) (*BinaryChannel, bool) {
	ch, ok := r.Get(name)
	if !ok {
		return nil, false
	}
	return ch.Binary(), true
}

// Has returns true if a channel with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns a sorted list of all registered channel names.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	result := make([]string, len(r.names))
	copy(result, r.names)
	return result
}

// Len returns the number of registered channels.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}

// ReleaseAll releases every channel in name order and joins the failures.
func (r *Registry) ReleaseAll(ctx context.Context) error {
	var errs []error
	for _, name := range r.Names() {
		if err := r.channels[name].Release(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return stdErrors.Join(errs...)
}

// Lookup returns the typed channel registered under name.
// It reports false when the name is unknown or the channel carries a
// different message type.
func Lookup[T any](r *Registry, name string) (*MessageChannel[T], bool) {
	ch, ok := r.Get(name)
	if !ok {
		return nil, false
	}
	mc, ok := ch.(*MessageChannel[T])
	return mc, ok
}
