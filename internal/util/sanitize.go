package util

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeText strips control and invisible formatting characters from user
// supplied text and trims surrounding whitespace. Newlines and tabs survive
// only when multiline is set. Invalid UTF-8 sequences are dropped.
func SanitizeText(value string, multiline bool) string {
	builder := strings.Builder{}
	builder.Grow(len(value))

	for i := 0; i < len(value); {
		char, size := utf8.DecodeRuneInString(value[i:])
		i += size

		if char == utf8.RuneError && size <= 1 {
			continue
		}
		if multiline && (char == '\n' || char == '\t') {
			builder.WriteRune(char)
			continue
		}
		if char == '\r' && multiline {
			continue
		}
		if unicode.IsControl(char) || isInvisibleUnicode(char) {
			continue
		}

		builder.WriteRune(char)
	}

	return strings.TrimSpace(builder.String())
}

// isInvisibleUnicode returns true for zero-width, formatting, and other
// invisible Unicode characters.
func isInvisibleUnicode(r rune) bool {
	switch r {
	case
		'\u200B', // Zero-Width Space
		'\u200C', // Zero-Width Non-Joiner
		'\u200D', // Zero-Width Joiner
		'\u200E', // Left-to-Right Mark
		'\u200F', // Right-to-Left Mark
		'\u2060', // Word Joiner
		'\uFEFF', // Zero-Width No-Break Space / BOM
		'\uFFF9', // Interlinear Annotation Anchor
		'\uFFFA', // Interlinear Annotation Separator
		'\uFFFB': // Interlinear Annotation Terminator
		return true
	}

	return unicode.Is(unicode.Cf, r)
}
