package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "Intro To Pattern Making", "intro to pattern making"},
		{"trims", "  Draping  ", "draping"},
		{"collapses whitespace", "Fashion \t Basics\n101", "fashion basics 101"},
		{"unicode", "Ĉapeau   Design", "ĉapeau design"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeTitle(tt.input))
		})
	}
}

func TestHashIdentifier(t *testing.T) {
	assert.Equal(t, "intro to pattern making-youtube", HashIdentifier("Intro to Pattern Making", "YouTube"))
	assert.Equal(t,
		HashIdentifier("Intro  to Pattern Making ", " youtube"),
		HashIdentifier("intro to pattern making", "YOUTUBE"),
	)
	assert.NotEqual(t, HashIdentifier("Draping", "youtube"), HashIdentifier("Draping", "vimeo"))
}

func TestTitlePrefix(t *testing.T) {
	assert.Equal(t, "Intro to P", TitlePrefix("  Intro to Pattern Making", 10))
	assert.Equal(t, "Short", TitlePrefix("Short", 10))
	assert.Equal(t, "Ĉapeau Des", TitlePrefix("Ĉapeau Design", 10))
	assert.Equal(t, "", TitlePrefix("anything", 0))
}

func TestApply(t *testing.T) {
	assert.Equal(t, "youtube", Apply(" YouTube ", "source"))
	assert.Equal(t, " Unknown ", Apply(" Unknown ", "missing"))

	fn, ok := Get("url")
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/a", fn(" https://example.com/a "))
}
