// Package config holds the connection settings for the object store and the
// three restore targets. Validation here is purely local: structural checks
// that run before any network probe is attempted.
package config

import "fmt"

// FieldError reports a structurally invalid setting, scoped to the field
// that caused it so the UI can point at it instead of showing a generic
// failure.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// fieldErrorf builds a FieldError for the given field.
func fieldErrorf(field, format string, args ...any) *FieldError {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// MaskSecret hides all but the last four characters of a secret value.
// Rendering decides when to apply it; the stored value is never redacted.
func MaskSecret(secret string) string {
	runes := []rune(secret)
	if len(runes) <= 4 {
		return repeatRune('*', len(runes))
	}
	hidden := len(runes) - 4
	return repeatRune('*', hidden) + string(runes[hidden:])
}

func repeatRune(r rune, n int) string {
	out := make([]rune, n)
	for i := range out {
		out[i] = r
	}
	return string(out)
}

// validPort reports whether p is a usable TCP port number.
func validPort(p int) bool {
	return p > 0 && p <= 65535
}
