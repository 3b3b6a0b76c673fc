// Package prompt composes cover prompts from the embedded genre, style and
// regional presets.
package prompt

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/afcover/assets"
)

// Presets is the decoded presets asset.
type Presets struct {
	Base         Base              `yaml:"base"`
	ReleaseTypes map[string]string `yaml:"release_types"`
	Genres       map[string]string `yaml:"genres"`
	Styles       map[string]Style  `yaml:"styles"`
	Regions      map[string]Region `yaml:"regions"`
}

// Base holds the fragments added to every prompt.
type Base struct {
	Quality     string `yaml:"quality"`
	Composition string `yaml:"composition"`
	Format      string `yaml:"format"`
	Finisher    string `yaml:"finisher"`
	Avoid       string `yaml:"avoid"`
}

// Style is a cover-style preset.
type Style struct {
	Name       string   `yaml:"name"`
	Elements   []string `yaml:"elements"`
	Colors     string   `yaml:"colors"`
	Typography string   `yaml:"typography"`
}

// Region refines a style with a regional flavour.
type Region struct {
	Name     string `yaml:"name"`
	Modifier string `yaml:"modifier"`
}

// LoadPresets decodes a presets document.
func LoadPresets(data []byte) (*Presets, error) {
	var p Presets
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode presets: %w", err)
	}
	if len(p.Styles) == 0 || len(p.Genres) == 0 {
		return nil, fmt.Errorf("decode presets: no styles or genres defined")
	}
	return &p, nil
}

// DefaultPresets decodes the embedded presets.
func DefaultPresets() (*Presets, error) {
	return LoadPresets(assets.PresetsYAML)
}

// GenreNames lists genre keys alphabetically.
func (p *Presets) GenreNames() []string { return sortedKeys(p.Genres) }

// StyleNames lists style keys alphabetically.
func (p *Presets) StyleNames() []string { return sortedKeys(p.Styles) }

// RegionNames lists regional keys alphabetically.
func (p *Presets) RegionNames() []string { return sortedKeys(p.Regions) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
