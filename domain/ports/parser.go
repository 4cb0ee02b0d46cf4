package ports

import "github.com/aardvark-ui/bridge/domain/entities"

// ConfigParser parses raw configuration bytes into a BridgeConfig.
type ConfigParser interface {
	// Parse unmarshals bytes into a BridgeConfig struct.
	Parse(data []byte) (*entities.BridgeConfig, error)
}
