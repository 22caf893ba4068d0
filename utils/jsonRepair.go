package utils

import (
	"strings"
	"unicode"

	"github.com/kaptinlin/jsonrepair"
)

// CleanJSONText strips encoding artifacts that make otherwise valid JSON unparsable:
// byte order marks, zero-width characters, stray control characters and non-breaking spaces.
// Content inside strings is preserved apart from invisible characters.
func CleanJSONText(raw string) string {
	raw = strings.ToValidUTF8(raw, "")
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r == '\uFEFF', r == '\u200B', r == '\u200C', r == '\u200D', r == '\u2060':
			continue
		case r == '\u00A0':
			b.WriteRune(' ')
		case r == '\t', r == '\n', r == '\r':
			b.WriteRune(r)
		case unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// RepairJSON rewrites hand-edit damage into strict JSON: smart quotes, comments,
// single-quoted strings, unquoted keys, trailing commas and Python literals.
// Text the repairer cannot make sense of is returned as an error.
func RepairJSON(text string) (string, error) {
	return jsonrepair.JSONRepair(text)
}
