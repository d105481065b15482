package telegram

import (
	"strings"
	"testing"
)

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain title", "plain title"},
		{"buy *milk*", "buy \\*milk\\*"},
		{"snake_case_name", "snake\\_case\\_name"},
		{"[link] style", "\\[link\\] style"},
		{"*_[]", "\\*\\_\\[\\]"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := EscapeMarkdown(tt.in); got != tt.want {
			t.Fatalf("EscapeMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscapeMarkdownNeutralizesAllControlRunes(t *testing.T) {
	escaped := EscapeMarkdown("a*b_c[d]e")
	for _, ctrl := range []string{"*", "_", "[", "]"} {
		if strings.Contains(strings.ReplaceAll(escaped, "\\"+ctrl, ""), ctrl) {
			t.Fatalf("unescaped %q remains in %q", ctrl, escaped)
		}
	}
}
