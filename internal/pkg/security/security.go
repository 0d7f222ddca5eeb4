// Package security provides input validation for the evaluation API and
// sanitization of untrusted values before they reach the logs.
package security

import (
	"strings"
	"unicode"
)

// DefaultLogLength is the length SanitizeForLog truncates to.
const DefaultLogLength = 200

// SanitizeForLog makes an untrusted string safe to log. It prevents log
// injection by:
// - Escaping newlines, carriage returns and tabs
// - Removing other control characters
// - Truncating to DefaultLogLength
func SanitizeForLog(s string) string {
	return SanitizeForLogWithLength(s, DefaultLogLength)
}

// SanitizeForLogWithLength sanitizes a string for logging with a custom max length.
func SanitizeForLogWithLength(s string, maxLen int) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(min(len(s), maxLen+10))

	count := 0
	for _, r := range s {
		if count >= maxLen {
			b.WriteString("...")
			break
		}

		switch r {
		case '\n':
			b.WriteString("\\n")
			count += 2
		case '\r':
			b.WriteString("\\r")
			count += 2
		case '\t':
			b.WriteString("\\t")
			count += 2
		default:
			if !unicode.IsControl(r) {
				b.WriteRune(r)
				count++
			}
		}
	}

	return b.String()
}
