// Package slug turns arbitrary text into file-system safe tokens.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	goslug "github.com/goliatone/go-slug"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugger converts text into a slug.
type Slugger interface {
	Slugify(value string) string
}

// Func adapts a plain function to Slugger.
type Func func(string) string

// Slugify calls f(value).
func (f Func) Slugify(value string) string {
	return f(value)
}

var (
	invalidChars = regexp.MustCompile(`[^\w\s-]`)
	separators   = regexp.MustCompile(`[-\s]+`)
)

type asciiSlugger struct{}

// Default returns the ASCII slugger. Accents are folded away and underscores
// are kept; runs of spaces and hyphens collapse to one hyphen.
func Default() Slugger {
	return asciiSlugger{}
}

// Slugify implements Slugger.
func (asciiSlugger) Slugify(value string) string {
	if value == strings.TrimSpace(value) && goslug.IsValid(value) {
		return value
	}
	out := strings.ToLower(fold(value))
	out = invalidChars.ReplaceAllString(out, "")
	out = separators.ReplaceAllString(out, "-")
	return strings.Trim(out, "-_")
}

// fold decomposes value and drops everything outside ASCII, so "é" becomes
// "e" and scripts without an ASCII decomposition vanish.
func fold(value string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	out, _, err := transform.String(t, value)
	if err != nil {
		return ""
	}
	return out
}
