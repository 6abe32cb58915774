package logger

import "strings"

const mask = "****"

// Redact masks an identifier so it can be logged without exposing it.
// Values of eight characters or fewer are fully masked.
func Redact(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:4] + mask
}
