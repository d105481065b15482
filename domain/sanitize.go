package domain

import (
	"strings"
	"unicode"
)

// SanitizeTitle normalizes a task title coming from external text: control
// characters are dropped, runs of whitespace collapse to one space, and the
// result is trimmed. An empty result means the candidate is unusable.
func SanitizeTitle(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := false
	for _, r := range s {
		// Space check comes first: \n and \t are control runes too, but
		// must collapse into a separator rather than vanish.
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}

	return strings.TrimSpace(b.String())
}
