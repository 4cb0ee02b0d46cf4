package ports

import "github.com/aardvark-ui/bridge/domain/entities"

// ConfigValidator validates a parsed configuration.
type ConfigValidator interface {
	// Validate returns a *errors.ConfigError naming the first offending field.
	Validate(cfg *entities.BridgeConfig) error
}
