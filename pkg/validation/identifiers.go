// Package validation checks user-provided identifiers before they touch
// the filesystem. Scenario ids become file names, so anything outside the
// identifier alphabet is rejected up front rather than normalized.
package validation

import "fmt"

// MaxIdentifierLen caps identifier length. Generous for timestamped ids,
// tight enough to stay under filesystem name limits with room for
// extensions.
const MaxIdentifierLen = 128

// IsValidIdentifierChar checks if a character is valid for identifiers
// (alphanumeric, hyphen, or underscore).
func IsValidIdentifierChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '_'
}

// ValidateIdentifier checks that an identifier is non-empty, within the
// length cap, and built entirely from identifier characters. This rules
// out path separators and traversal sequences, so a validated identifier
// is safe to use as a file name.
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(id) > MaxIdentifierLen {
		return fmt.Errorf("identifier too long: %d characters (max %d)", len(id), MaxIdentifierLen)
	}
	for _, ch := range id {
		if !IsValidIdentifierChar(ch) {
			return fmt.Errorf("identifier %q contains invalid character %q", id, ch)
		}
	}
	return nil
}
