package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/pkg/slug"
	"github.com/doeshing/afcover/internal/ports"
)

// DefaultStyle is used when neither a genre nor a style is given.
const DefaultStyle = "traditional"

// Composer turns CoverParams into a single prompt string.
type Composer struct {
	presets *Presets
}

// NewComposer builds a composer over presets.
func NewComposer(presets *Presets) *Composer {
	return &Composer{presets: presets}
}

// Presets exposes the loaded presets.
func (c *Composer) Presets() *Presets { return c.presets }

// Compose implements ports.PromptComposer. Unknown genre, style, region or
// release type names are validation errors.
func (c *Composer) Compose(params domain.CoverParams) (string, error) {
	p := normalize(params)
	if p.Genre == "" && p.Style == "" {
		p.Style = DefaultStyle
	}

	release, ok := c.presets.ReleaseTypes[p.ReleaseType]
	if !ok {
		return "", unknown("release_type", p.ReleaseType, sortedKeys(c.presets.ReleaseTypes))
	}
	parts := []string{strings.TrimSpace(release)}

	if p.Genre != "" {
		genre, ok := c.presets.Genres[p.Genre]
		if !ok {
			return "", unknown("genre", p.Genre, c.presets.GenreNames())
		}
		parts = append(parts, fmt.Sprintf("%s genre: %s", cases.Title(language.English).String(p.Genre), genre))
	}

	if p.Style != "" {
		style, ok := c.presets.Styles[p.Style]
		if !ok {
			return "", unknown("style", p.Style, c.presets.StyleNames())
		}
		parts = append(parts, style.Name+" style")
		parts = append(parts, style.Elements...)
		parts = append(parts, "Color palette: "+style.Colors, "Typography: "+style.Typography)
	}

	if p.Regional != "" {
		region, ok := c.presets.Regions[p.Regional]
		if !ok {
			return "", unknown("regional", p.Regional, c.presets.RegionNames())
		}
		parts = append(parts, region.Modifier)
	}

	if len(p.Colors) > 0 {
		parts = append(parts, "Featured colors: "+strings.Join(p.Colors, ", "))
	}
	if p.Subject != "" {
		parts = append(parts, "Subject: "+p.Subject)
	}
	if p.Title != "" {
		parts = append(parts, fmt.Sprintf("Album title: %q", p.Title))
	}
	if p.Artist != "" {
		parts = append(parts, "For artist: "+p.Artist)
	}
	if p.Custom != "" {
		parts = append(parts, p.Custom)
	}

	base := c.presets.Base
	parts = append(parts, base.Quality, base.Composition, base.Format, strings.TrimSpace(base.Finisher))

	avoid := base.Avoid
	if p.Avoid != "" {
		avoid = p.Avoid + ", " + avoid
	}
	parts = append(parts, "Avoid: "+avoid)

	return joinSentences(parts), nil
}

// BaseName derives the artifact base name from the artist and title.
func BaseName(params domain.CoverParams) string {
	return slug.Make(params.Artist, params.Title)
}

func normalize(p domain.CoverParams) domain.CoverParams {
	p.Genre = strings.ToLower(strings.TrimSpace(p.Genre))
	p.Style = strings.ToLower(strings.TrimSpace(p.Style))
	p.Regional = strings.ToLower(strings.TrimSpace(p.Regional))
	p.ReleaseType = strings.ToLower(strings.TrimSpace(p.ReleaseType))
	if p.ReleaseType == "" {
		p.ReleaseType = "album"
	}
	p.Title = strings.TrimSpace(p.Title)
	p.Artist = strings.TrimSpace(p.Artist)
	p.Subject = strings.TrimSpace(p.Subject)
	p.Custom = strings.TrimSpace(p.Custom)
	p.Avoid = strings.TrimSpace(p.Avoid)
	colors := p.Colors[:0:0]
	for _, c := range p.Colors {
		if c = strings.TrimSpace(c); c != "" {
			colors = append(colors, c)
		}
	}
	p.Colors = colors
	return p
}

// joinSentences ends each fragment with a period and joins them with spaces.
func joinSentences(parts []string) string {
	var b strings.Builder
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(part)
		if !strings.HasSuffix(part, ".") {
			b.WriteByte('.')
		}
	}
	return b.String()
}

func unknown(field, value string, known []string) error {
	return domain.NewValidationError(field, fmt.Sprintf("unknown %s %q (known: %s)", field, value, strings.Join(known, ", ")))
}

var _ ports.PromptComposer = (*Composer)(nil)
