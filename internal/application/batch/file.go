// Package batch runs several cover lifecycles against one shared ledger.
package batch

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/pkg/slug"
	"github.com/doeshing/afcover/internal/ports"
)

// File is a batch document:
//
//	defaults:
//	  resolution: 1K
//	covers:
//	  - title: Watan
//	    style: traditional
//	  - prompt: "a raw prompt"
//	    name: raw-cover
type File struct {
	Defaults Entry   `yaml:"defaults"`
	Covers   []Entry `yaml:"covers"`
}

// Entry is one cover. Prompt, when set, bypasses composition.
type Entry struct {
	domain.CoverParams `yaml:",inline"`
	Name               string   `yaml:"name"`
	Prompt             string   `yaml:"prompt"`
	Resolution         string   `yaml:"resolution"`
	NumVariations      int      `yaml:"num_variations"`
	OutputFormat       string   `yaml:"output_format"`
	Seed               *int64   `yaml:"seed"`
	References         []string `yaml:"references"`
}

// Job is a validated, composed request ready for the lifecycle.
type Job struct {
	Index    int
	BaseName string
	Request  domain.GenerationRequest
}

// ParseFile decodes a batch document. Unknown keys are rejected.
func ParseFile(data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, domain.NewValidationError("batch", err.Error())
	}
	if len(f.Covers) == 0 {
		return File{}, domain.NewValidationError("batch", "no covers listed")
	}
	return f, nil
}

// Jobs composes and validates every entry. The first invalid entry fails the
// whole batch, before anything is submitted.
func (f File) Jobs(composer ports.PromptComposer, opts domain.RequestOptions) ([]Job, error) {
	jobs := make([]Job, 0, len(f.Covers))
	for i, entry := range f.Covers {
		entry = entry.withDefaults(f.Defaults)
		text := entry.Prompt
		if text == "" {
			composed, err := composer.Compose(entry.CoverParams)
			if err != nil {
				return nil, fmt.Errorf("cover %d: %w", i+1, err)
			}
			text = composed
		}
		o := opts
		if entry.Resolution != "" {
			o.Resolution = entry.Resolution
		}
		if entry.NumVariations != 0 {
			o.NumVariations = entry.NumVariations
		}
		if entry.OutputFormat != "" {
			o.OutputFormat = entry.OutputFormat
		}
		if entry.Seed != nil {
			o.Seed = entry.Seed
		}
		if len(entry.References) > 0 {
			o.ReferenceImages = entry.References
		}
		req, err := domain.NewGenerationRequest(text, o)
		if err != nil {
			return nil, fmt.Errorf("cover %d: %w", i+1, err)
		}
		base := entry.Name
		if base == "" {
			base = slug.Make(entry.Artist, entry.Title)
		}
		jobs = append(jobs, Job{Index: i + 1, BaseName: base, Request: req})
	}
	return jobs, nil
}

func (e Entry) withDefaults(d Entry) Entry {
	if e.Genre == "" {
		e.Genre = d.Genre
	}
	if e.Style == "" {
		e.Style = d.Style
	}
	if e.Regional == "" {
		e.Regional = d.Regional
	}
	if e.Artist == "" {
		e.Artist = d.Artist
	}
	if e.ReleaseType == "" {
		e.ReleaseType = d.ReleaseType
	}
	if e.Avoid == "" {
		e.Avoid = d.Avoid
	}
	if len(e.Colors) == 0 {
		e.Colors = d.Colors
	}
	if e.Resolution == "" {
		e.Resolution = d.Resolution
	}
	if e.NumVariations == 0 {
		e.NumVariations = d.NumVariations
	}
	if e.OutputFormat == "" {
		e.OutputFormat = d.OutputFormat
	}
	if len(e.References) == 0 {
		e.References = d.References
	}
	return e
}
