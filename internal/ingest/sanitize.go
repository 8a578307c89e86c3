package ingest

import (
	"strings"
	"unicode"
)

// ContainsHiddenText reports whether the text carries characters that render
// as nothing: zero-width spaces, BOMs, other format characters, or control
// characters. Such chunks are a prompt injection vector and are excluded
// from indexing. Newlines and tabs are ordinary text.
func ContainsHiddenText(text string) bool {
	for _, r := range text {
		if r == '\n' || r == '\t' {
			continue
		}
		if unicode.In(r, unicode.Cf) || unicode.IsControl(r) {
			return true
		}
	}
	return false
}

// NormalizeNewlines pads every newline with a leading space so tokenizers
// on the provider side never glue the words around a line break together.
func NormalizeNewlines(text string) string {
	return strings.ReplaceAll(text, "\n", " \n")
}
