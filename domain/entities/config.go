package entities

// Codec names accepted in configuration.
const (
	CodecString = "string"
	CodecJSON   = "json"
	CodecCBOR   = "cbor"
)

// Engine kinds accepted in configuration.
const (
	EngineLoopback = "loopback"
	EngineWASM     = "wasm"
)

// BridgeConfig is the file configuration of a bridge host.
type BridgeConfig struct {
	Engine   EngineConfig    `json:"engine" yaml:"engine"`
	Log      LogConfig       `json:"log" yaml:"log"`
	Channels []ChannelConfig `json:"channels,omitempty" yaml:"channels,omitempty" validate:"omitempty,unique=Name,dive"`
	Surface  Surface         `json:"surface" yaml:"surface"`
	Dispatch DispatchConfig  `json:"dispatch" yaml:"dispatch"`
	Timers   bool            `json:"timers,omitempty" yaml:"timers,omitempty"`
	Debug    bool            `json:"debug,omitempty" yaml:"debug,omitempty"`
}

// ChannelConfig declares one additional named channel.
type ChannelConfig struct {
	Name    string `json:"name" yaml:"name" validate:"required,ne=system,ne=timers"`
	Codec   string `json:"codec" yaml:"codec" validate:"required,oneof=string json cbor"`
	Charset string `json:"charset,omitempty" yaml:"charset,omitempty"`
}

// EngineConfig selects the engine implementation.
type EngineConfig struct {
	Kind   string `json:"kind" yaml:"kind" validate:"required,oneof=loopback wasm"`
	Module string `json:"module,omitempty" yaml:"module,omitempty" validate:"required_if=Kind wasm"`
	Echo   bool   `json:"echo,omitempty" yaml:"echo,omitempty"`
}

// DispatchConfig bounds the owner-thread work done per update.
type DispatchConfig struct {
	MaxPerUpdate int `json:"max_per_update,omitempty" yaml:"max_per_update,omitempty" validate:"gte=0"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level      string `json:"level,omitempty" yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Format     string `json:"format,omitempty" yaml:"format,omitempty" validate:"omitempty,oneof=text json"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty" validate:"gte=0"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty" validate:"gte=0"`
}
