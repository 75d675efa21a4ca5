// Package sanitize cleans and validates names that end up as file names on
// disk, such as backup table names.
//
// It removes problematic characters:
//   - Invisible Unicode characters (zero-width spaces, BOM, etc.)
//   - Surrounding whitespace
//
// and rejects names that would escape their directory.
package sanitize

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidName is returned by TableName for names that cannot be used as a
// file stem.
var ErrInvalidName = errors.New("invalid name")

// removeInvisibleChars removes zero-width and other invisible Unicode characters
func removeInvisibleChars(s string) string {
	invisibleChars := []string{
		"\u200B", // Zero-width space
		"\u200C", // Zero-width non-joiner
		"\u200D", // Zero-width joiner
		"\uFEFF", // Zero-width no-break space (BOM)
		"\u00AD", // Soft hyphen
		"\u2060", // Word joiner
		"\u180E", // Mongolian vowel separator
	}

	for _, char := range invisibleChars {
		s = strings.ReplaceAll(s, char, "")
	}

	return s
}

// SanitizeField strips invisible characters and surrounding whitespace.
func SanitizeField(field string) string {
	if field == "" {
		return field
	}
	field = removeInvisibleChars(field)
	return strings.TrimSpace(field)
}

// TableName sanitizes name and checks that it is usable as a single path
// element. Empty names, "." and "..", path separators, NUL and other control
// characters are rejected.
func TableName(name string) (string, error) {
	clean := SanitizeField(name)
	if clean == "" || clean == "." || clean == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.ContainsAny(clean, `/\:`) {
		return "", fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	for _, r := range clean {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: %q contains a control character", ErrInvalidName, name)
		}
	}
	return clean, nil
}
