// Package slug derives file-system safe base names from titles and artist names.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is returned when nothing usable survives folding.
const Fallback = "cover"

const maxRunes = 48

// Make folds accents, lowercases and joins words with single hyphens.
// Letters from non-Latin scripts are kept as-is.
func Make(parts ...string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	var b strings.Builder
	pendingDash := false
	for _, part := range parts {
		folded, _, err := transform.String(folder, part)
		if err != nil {
			folded = part
		}
		for _, r := range strings.ToLower(folded) {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				if pendingDash && b.Len() > 0 {
					b.WriteByte('-')
				}
				b.WriteRune(r)
				pendingDash = false
				continue
			}
			pendingDash = true
		}
		pendingDash = true
	}
	out := []rune(b.String())
	if len(out) > maxRunes {
		out = out[:maxRunes]
	}
	trimmed := strings.Trim(string(out), "-")
	if trimmed == "" {
		return Fallback
	}
	return trimmed
}
