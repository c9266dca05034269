package services

import (
	"strings"

	"github.com/rivo/uniseg"
)

const noInputMarker = "(no input recorded)"

// clip truncates s to at most limit grapheme clusters so Hangul syllables and
// emoji are never split. limit <= 0 disables clipping.
func clip(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	var sb strings.Builder
	g := uniseg.NewGraphemes(s)
	n := 0
	for g.Next() {
		if n == limit {
			sb.WriteString(" …[truncated]")
			return sb.String()
		}
		sb.WriteString(g.Str())
		n++
	}
	return s
}

// orNoInput substitutes a marker for blank model input.
func orNoInput(s string) string {
	if strings.TrimSpace(s) == "" {
		return noInputMarker
	}
	return s
}
