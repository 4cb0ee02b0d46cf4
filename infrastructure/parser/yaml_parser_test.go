package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aardvark-ui/bridge/domain/entities"
	"github.com/aardvark-ui/bridge/domain/errors"
)

const sample = `
surface: {width: 1080, height: 1920}
engine:
  kind: wasm
  module: engine.wasm
channels:
  - name: text
    codec: string
    charset: windows-1252
  - {name: state, codec: cbor}
dispatch: {max_per_update: 64}
log: {level: debug, format: json, file: /tmp/bridge.log, max_size_mb: 5, max_backups: 2}
timers: true
debug: true
`

func TestYamlConfigParser_Parse(t *testing.T) {
	cfg, err := NewYamlConfigParser().Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, entities.NewSurface(1080, 1920), cfg.Surface)
	assert.Equal(t, entities.EngineConfig{Kind: "wasm", Module: "engine.wasm"}, cfg.Engine)
	assert.Equal(t, []entities.ChannelConfig{
		{Name: "text", Codec: "string", Charset: "windows-1252"},
		{Name: "state", Codec: "cbor"},
	}, cfg.Channels)
	assert.Equal(t, 64, cfg.Dispatch.MaxPerUpdate)
	assert.Equal(t, entities.LogConfig{Level: "debug", Format: "json", File: "/tmp/bridge.log", MaxSizeMB: 5, MaxBackups: 2}, cfg.Log)
	assert.True(t, cfg.Timers)
	assert.True(t, cfg.Debug)
}

func TestYamlConfigParser_Empty(t *testing.T) {
	cfg, err := NewYamlConfigParser().Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, &entities.BridgeConfig{}, cfg)
}

func TestYamlConfigParser_Errors(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown key": "surface: {width: 1, height: 1}\nwindow: main\n",
		"bad type":    "surface: {width: wide}\n",
		"bad syntax":  "channels: [\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewYamlConfigParser().Parse([]byte(doc))
			var ce *errors.ConfigError
			require.ErrorAs(t, err, &ce)
		})
	}
}
