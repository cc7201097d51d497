// Package validate holds the pure input predicates used by the conversation
// engine before any lookup is issued. All functions are deterministic and do
// no I/O.
package validate

import (
	"regexp"
	"strings"
	"unicode"
)

// plateRe matches a 3-letter prefix followed by 3 digits (motorcycles) or
// 4 digits (cars), with an optional hyphen between them.
var plateRe = regexp.MustCompile(`^[A-Z]{3}-?\d{3,4}$`)

// NationalID reports whether s reduces to exactly 10 ASCII digits after
// stripping whitespace and hyphens.
func NationalID(s string) bool {
	var digits strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) || r == '-' {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
		digits.WriteRune(r)
	}
	return digits.Len() == 10
}

// Plate reports whether s is a valid vehicle plate once whitespace is
// stripped and letters are uppercased.
func Plate(s string) bool {
	var cleaned strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		cleaned.WriteRune(r)
	}
	return plateRe.MatchString(strings.ToUpper(cleaned.String()))
}

// SearchName reports whether s is long enough to search by name: at least
// 3 characters after trimming.
func SearchName(s string) bool {
	return len([]rune(strings.TrimSpace(s))) >= 3
}
