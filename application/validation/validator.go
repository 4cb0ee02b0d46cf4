// Package validation checks channel payloads against registered JSON schemas.
package validation

import (
	"bytes"
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/aardvark-ui/bridge/channel"
	"github.com/aardvark-ui/bridge/domain/errors"
	"github.com/aardvark-ui/bridge/domain/ports"
)

// MessageValidator validates JSON payloads using schemas from a registry.
// Compiled schemas are cached per name.
type MessageValidator struct {
	registry ports.SchemaRegistry
	compiled map[string]*jsonschema.Schema
	mu       sync.Mutex
}

// NewMessageValidator creates a validator over registry.
func NewMessageValidator(registry ports.SchemaRegistry) *MessageValidator {
	return &MessageValidator{
		registry: registry,
		compiled: make(map[string]*jsonschema.Schema),
	}
}

func (v *MessageValidator) schema(name string) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if sch, ok := v.compiled[name]; ok {
		return sch, nil
	}

	schemaStr, ok := v.registry.GetSchema(name)
	if !ok {
		return nil, fmt.Errorf("no schema registered for message %s", name)
	}

	compiler := jsonschema.NewCompiler()
	url := "mem://schemas/" + name + ".json"
	if err := compiler.AddResource(url, strings.NewReader(schemaStr)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource for %s: %w", name, err)
	}
	sch, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("invalid schema for %s: %w", name, err)
	}
	v.compiled[name] = sch
	return sch, nil
}

// Validate checks payload against the schema registered under name.
// A payload that is not JSON or does not match returns *errors.DecodeError.
func (v *MessageValidator) Validate(name string, payload []byte) error {
	sch, err := v.schema(name)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var obj interface{}
	if err := dec.Decode(&obj); err != nil {
		return &errors.DecodeError{Codec: "schema/" + name, Size: len(payload), Err: err}
	}

	if err := sch.Validate(obj); err != nil {
		var ve *jsonschema.ValidationError
		if stdErrors.As(err, &ve) {
			return &errors.DecodeError{Codec: "schema/" + name, Size: len(payload), Err: stdErrors.New(ve.Error())}
		}
		return &errors.DecodeError{Codec: "schema/" + name, Size: len(payload), Err: err}
	}
	return nil
}

// Middleware drops inbound messages that do not match the named schema.
// Dropped messages are logged at warn level.
func Middleware(v *MessageValidator, name string, logger *slog.Logger) channel.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next channel.Handler) channel.Handler {
		return func(ctx context.Context, buf *channel.BinaryBuffer) {
			if err := v.Validate(name, buf.Bytes()); err != nil {
				attrs := []any{"schema", name, "size", buf.Len(), "error", err}
				if dc, ok := channel.DeliveryFrom(ctx); ok {
					attrs = append(attrs, "channel", dc.Channel(), "seq", dc.Seq())
				}
				logger.WarnContext(ctx, "message rejected by schema", attrs...)
				return
			}
			next(ctx, buf)
		}
	}
}
