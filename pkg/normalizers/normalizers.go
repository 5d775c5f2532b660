// Package normalizers provides the string normalization used to key and
// compare scraped courses.
package normalizers

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

var registry = make(map[string]Normalizer)

var lower = cases.Lower(language.Und)

func init() {
	Register("title", NormalizeTitle)
	Register("source", NormalizeSource)
	Register("url", NormalizeURL)
	Register("collapse_whitespace", CollapseWhitespace)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value. Unknown names leave the value untouched.
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// NormalizeTitle lowercases, trims and collapses internal whitespace.
func NormalizeTitle(s string) string {
	return CollapseWhitespace(lower.String(norm.NFC.String(s)))
}

// NormalizeSource lowercases and trims a scraper or platform name.
func NormalizeSource(s string) string {
	return lower.String(strings.TrimSpace(norm.NFC.String(s)))
}

// NormalizeURL trims surrounding whitespace. URLs are otherwise compared exactly.
func NormalizeURL(s string) string {
	return strings.TrimSpace(s)
}

// CollapseWhitespace trims and replaces every whitespace run with one space.
func CollapseWhitespace(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	space := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			result.WriteRune(' ')
			space = false
		}
		result.WriteRune(r)
	}
	return result.String()
}

// HashIdentifier builds the exact-duplicate key for a title and source.
func HashIdentifier(title, source string) string {
	return NormalizeTitle(title) + "-" + NormalizeSource(source)
}

// TitlePrefix returns the first n runes of the trimmed title.
func TitlePrefix(title string, n int) string {
	trimmed := strings.TrimSpace(title)
	if n <= 0 {
		return ""
	}
	runes := []rune(trimmed)
	if len(runes) <= n {
		return trimmed
	}
	return string(runes[:n])
}
