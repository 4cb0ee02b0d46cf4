package host

import (
	"fmt"

	appconfig "github.com/aardvark-ui/bridge/application/config"
	"github.com/aardvark-ui/bridge/channel"
	"github.com/aardvark-ui/bridge/domain/entities"
	"github.com/aardvark-ui/bridge/domain/errors"
	"github.com/aardvark-ui/bridge/domain/ports"
	"github.com/aardvark-ui/bridge/infrastructure/parser"
)

// loaderConfig holds configuration for the Loader.
type loaderConfig struct {
	parser    ports.ConfigParser
	validator ports.ConfigValidator
}

func defaultLoaderConfig() loaderConfig {
	return loaderConfig{
		parser:    parser.NewYamlConfigParser(),
		validator: appconfig.NewValidator(),
	}
}

// Loader orchestrates the configuration pipeline: parse, default, validate.
type Loader struct {
	config loaderConfig
}

// LoaderOption configures the Loader.
type LoaderOption func(*loaderConfig)

// WithParser sets a custom configuration parser.
func WithParser(p ports.ConfigParser) LoaderOption {
	return func(c *loaderConfig) {
		c.parser = p
	}
}

// WithValidator sets a custom configuration validator.
func WithValidator(v ports.ConfigValidator) LoaderOption {
	return func(c *loaderConfig) {
		c.validator = v
	}
}

// NewLoader creates a new Loader with defaults.
func NewLoader(opts ...LoaderOption) *Loader {
	cfg := defaultLoaderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Loader{config: cfg}
}

// LoadConfig parses raw configuration, applies defaults and validates it.
func (l *Loader) LoadConfig(raw []byte) (*entities.BridgeConfig, error) {
	cfg, err := l.config.parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	appconfig.ApplyDefaults(cfg)

	if l.config.validator != nil {
		if err := l.config.validator.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// OptionsFromConfig translates the channel, dispatch, timer and debug
// sections of cfg into host options. Logging and engine selection are left
// to the caller.
func OptionsFromConfig(cfg *entities.BridgeConfig) ([]Option, error) {
	opts := []Option{
		WithMaxDeliveriesPerUpdate(cfg.Dispatch.MaxPerUpdate),
		WithDebug(cfg.Debug),
	}

	for _, cc := range cfg.Channels {
		spec, err := specFromConfig(cc)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithChannel(spec))
	}

	if cfg.Timers {
		opts = append(opts, WithTimers(entities.TimersChannel))
	}
	return opts, nil
}

func specFromConfig(cc entities.ChannelConfig) (ChannelSpec, error) {
	switch cc.Codec {
	case entities.CodecString:
		codec := channel.String()
		if cc.Charset != "" {
			var err error
			codec, err = channel.StringCharset(cc.Charset)
			if err != nil {
				return ChannelSpec{}, &errors.ConfigError{Field: "channels." + cc.Name + ".charset", Err: err}
			}
		}
		return Typed(cc.Name, codec, nil), nil
	case entities.CodecJSON, "":
		return JSON(cc.Name, nil), nil
	case entities.CodecCBOR:
		codec, err := channel.CBOR[channel.Object]()
		if err != nil {
			return ChannelSpec{}, &errors.ConfigError{Field: "channels." + cc.Name + ".codec", Err: err}
		}
		return Typed(cc.Name, codec, nil), nil
	default:
		return ChannelSpec{}, &errors.ConfigError{Field: "channels." + cc.Name + ".codec", Err: fmt.Errorf("unknown codec %q", cc.Codec)}
	}
}
