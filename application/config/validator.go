// Package config validates and completes bridge configuration.
package config

import (
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aardvark-ui/bridge/domain/entities"
	"github.com/aardvark-ui/bridge/domain/errors"
	"github.com/aardvark-ui/bridge/domain/ports"
)

// Default values applied before validation.
const (
	DefaultDispatchPerUpdate = 256
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultLogMaxSizeMB      = 10
	DefaultLogMaxBackups     = 3
)

// validate is a package-level singleton; building a validator is expensive.
var validate = validator.New()

// Validator implements ports.ConfigValidator with struct tags.
type Validator struct{}

// NewValidator creates a Validator.
func NewValidator() ports.ConfigValidator {
	return &Validator{}
}

// Validate checks cfg and reports the first offending field as *errors.ConfigError.
func (v *Validator) Validate(cfg *entities.BridgeConfig) error {
	if cfg == nil {
		return &errors.ConfigError{Err: stdErrors.New("no configuration")}
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if stdErrors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &errors.ConfigError{
				Field: fieldPath(fe.Namespace()),
				Err:   fmt.Errorf("failed on '%s' (value %v)", fe.Tag(), fe.Value()),
			}
		}
		return &errors.ConfigError{Err: err}
	}
	return nil
}

// fieldPath turns "BridgeConfig.Engine.Module" into "engine.module".
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return strings.ToLower(strings.Join(parts, "."))
}

// ApplyDefaults fills unset fields with their defaults.
func ApplyDefaults(cfg *entities.BridgeConfig) {
	if cfg.Engine.Kind == "" {
		cfg.Engine.Kind = entities.EngineLoopback
	}
	if cfg.Dispatch.MaxPerUpdate == 0 {
		cfg.Dispatch.MaxPerUpdate = DefaultDispatchPerUpdate
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = DefaultLogMaxBackups
	}
	for i := range cfg.Channels {
		if cfg.Channels[i].Codec == "" {
			cfg.Channels[i].Codec = entities.CodecJSON
		}
	}
}
