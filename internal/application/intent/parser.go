// Package intent turns free-form cover requests into structured parameters.
package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/doeshing/afcover/internal/domain"
)

// Vocabulary lists the preset names the parser recognizes.
type Vocabulary struct {
	Genres  []string
	Styles  []string
	Regions []string
}

// Parser extracts CoverIntent from text such as
// `modern kabuli cover for "Watan" by Ahmad Zahir, 2 variations in 4K`.
type Parser struct {
	genres  []keyword
	styles  []keyword
	regions []keyword
}

type keyword struct {
	name string
	re   *regexp.Regexp
}

var (
	titledRe     = regexp.MustCompile(`(?i)\b(?:for|titled|named|called)\s+["'“‘]([^"'”’]+)["'”’]`)
	quotedRe     = regexp.MustCompile(`["“]([^"”]+)["”]|'([^']+)'`)
	artistRe     = regexp.MustCompile(`(?i)\bby\s+(\p{L}[\p{L}\s.'-]*?)(?:\s+(?:in|with|style|using|at)\b|[,;!?]|\.\s|\.$|$)`)
	res4KRe      = regexp.MustCompile(`(?i)\b4k\b`)
	res2KRe      = regexp.MustCompile(`(?i)\b2k\b`)
	variationsRe = regexp.MustCompile(`(?i)\b(\d+)\s+(?:variations?|versions?|options?)\b`)
	withRe       = regexp.MustCompile(`(?i)\bwith\s+([^.,;!?]+)`)
	trailingRe   = regexp.MustCompile(`(?i)\s+(?:in|at)\s+[124]k\s*$`)
)

// NewParser compiles one matcher per vocabulary word.
func NewParser(v Vocabulary) *Parser {
	return &Parser{
		genres:  compile(v.Genres),
		styles:  compile(v.Styles),
		regions: compile(v.Regions),
	}
}

func compile(names []string) []keyword {
	out := make([]keyword, 0, len(names))
	for _, name := range names {
		pattern := strings.ReplaceAll(regexp.QuoteMeta(strings.ToLower(name)), "-", "[- ]?")
		out = append(out, keyword{name: name, re: regexp.MustCompile(`(?i)(?:^|[^\p{L}\d])(` + pattern + `)(?:$|[^\p{L}\d])`)})
	}
	return out
}

// Parse extracts what it can; anything not mentioned is left for defaults.
func (p *Parser) Parse(text string) (domain.CoverIntent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.CoverIntent{}, domain.NewValidationError("request", "empty request")
	}

	intent := domain.CoverIntent{
		Resolution:    domain.Resolution1K,
		NumVariations: domain.MinVariations,
	}
	params := &intent.Params
	params.Title = extractTitle(text)

	// Quoted titles may contain keywords or "by"; match the rest of the text only.
	bare := quotedRe.ReplaceAllString(text, " ")
	if m := artistRe.FindStringSubmatch(bare); m != nil {
		params.Artist = strings.TrimSpace(strings.TrimRight(m[1], ".'- "))
	}

	params.Style = earliest(p.styles, bare)
	params.Regional = earliest(p.regions, bare)
	params.Genre = earliest(p.genres, bare)

	switch {
	case res4KRe.MatchString(bare):
		intent.Resolution = domain.Resolution4K
	case res2KRe.MatchString(bare):
		intent.Resolution = domain.Resolution2K
	}

	if m := variationsRe.FindStringSubmatch(bare); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			intent.NumVariations = domain.ClampVariations(n)
		}
	}

	params.Custom = extractCustom(bare)
	return intent, nil
}

func extractTitle(text string) string {
	if m := titledRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := quotedRe.FindStringSubmatch(text); m != nil {
		if m[1] != "" {
			return strings.TrimSpace(m[1])
		}
		return strings.TrimSpace(m[2])
	}
	return ""
}

// earliest returns the keyword that appears first in text.
func earliest(words []keyword, text string) string {
	best, bestAt := "", -1
	for _, w := range words {
		loc := w.re.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		if bestAt == -1 || loc[2] < bestAt {
			best, bestAt = w.name, loc[2]
		}
	}
	return best
}

// extractCustom keeps a "with ..." clause as extra prompt text.
func extractCustom(text string) string {
	m := withRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	custom := strings.TrimSpace(trailingRe.ReplaceAllString(m[1], ""))
	if custom == "" {
		return ""
	}
	return "with " + custom
}
