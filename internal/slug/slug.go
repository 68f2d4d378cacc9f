// Package slug implements the YYYYMMDD-kebab-title episode identifier
// convention. The slug doubles as the publication date source and the
// default title source for an episode.
package slug

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrFormat is returned when a slug's date prefix cannot be parsed.
// Callers should Validate before calling DateOf.
var ErrFormat = errors.New("slug: invalid date prefix")

const dateLayout = "20060102"

// Validate reports whether s follows the YYYYMMDD-kebab-title convention:
// an eight-digit calendar date in [1900,2099], a hyphen separator, and a
// non-empty lowercase kebab remainder.
func Validate(s string) bool {
	if len(s) < 9 {
		return false
	}

	datePart := s[:8]
	if !allDigits(datePart) {
		return false
	}

	parsed, err := time.Parse(dateLayout, datePart)
	if err != nil {
		return false
	}
	if parsed.Year() < 1900 || parsed.Year() > 2099 {
		return false
	}

	if s[8] != '-' {
		return false
	}

	return ValidKebab(s[9:])
}

// ValidKebab reports whether text is non-empty lowercase kebab-case:
// [a-z0-9]+(-[a-z0-9]+)*, no leading, trailing, or doubled hyphens.
func ValidKebab(text string) bool {
	if text == "" {
		return false
	}

	for _, c := range text {
		if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') && c != '-' {
			return false
		}
	}

	if strings.HasPrefix(text, "-") || strings.HasSuffix(text, "-") {
		return false
	}

	return !strings.Contains(text, "--")
}

// DateOf parses the slug's eight-digit prefix as the publication date at
// midnight UTC. Fails with ErrFormat when the prefix is not a valid date.
func DateOf(s string) (time.Time, error) {
	if len(s) < 8 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrFormat, s)
	}
	parsed, err := time.Parse(dateLayout, s[:8])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrFormat, s[:8])
	}
	return parsed.UTC(), nil
}

// TitleOf derives a human-readable title from the slug by stripping the
// date prefix and title-casing the kebab remainder. Total over valid slugs.
func TitleOf(s string) string {
	titlePart := s
	if len(s) > 9 && s[8] == '-' {
		titlePart = s[9:]
	}

	words := strings.Split(titlePart, "-")
	titled := make([]string, 0, len(words))
	for _, word := range words {
		if word == "" {
			continue
		}
		titled = append(titled, strings.ToUpper(word[:1])+word[1:])
	}

	return strings.Join(titled, " ")
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
