package assets

import (
	_ "embed"
)

// DefaultConfigYAML contains the embedded default configuration.
//
//go:embed defaults/config.yaml
var DefaultConfigYAML []byte

// PresetsYAML contains the genre, style and regional prompt presets.
//
//go:embed defaults/presets.yaml
var PresetsYAML []byte
