// Package parser decodes bridge configuration files.
package parser

import (
	"bytes"
	stdErrors "errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/aardvark-ui/bridge/domain/entities"
	"github.com/aardvark-ui/bridge/domain/errors"
	"github.com/aardvark-ui/bridge/domain/ports"
)

// YamlConfigParser implements ConfigParser for YAML.
type YamlConfigParser struct{}

// NewYamlConfigParser creates a new YamlConfigParser.
func NewYamlConfigParser() ports.ConfigParser {
	return &YamlConfigParser{}
}

// Parse unmarshals YAML bytes into a BridgeConfig struct.
// Unknown keys are rejected so that typos do not silently fall back to defaults.
func (p *YamlConfigParser) Parse(data []byte) (*entities.BridgeConfig, error) {
	var cfg entities.BridgeConfig

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if stdErrors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, &errors.ConfigError{Err: fmt.Errorf("parse yaml: %w", err)}
	}
	return &cfg, nil
}
