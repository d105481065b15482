package telegram

import "strings"

var markdownEscaper = strings.NewReplacer(
	"*", "\\*",
	"_", "\\_",
	"[", "\\[",
	"]", "\\]",
)

// EscapeMarkdown neutralizes the markdown control characters in user-supplied
// text so titles like "buy *milk*" render literally instead of breaking the
// message formatting.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
