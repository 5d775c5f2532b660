package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevenshtein(t *testing.T) {
	sim := Levenshtein{}

	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"identical", "fashion basics", "fashion basics", 1.0},
		{"both empty", "", "", 1.0},
		{"one empty", "draping", "", 0.0},
		{"one edit", "kitten", "sitten", 1.0 - 1.0/6.0},
		{"classic", "kitten", "sitting", 1.0 - 3.0/7.0},
		{"runes", "ĉapeau", "capeau", 1.0 - 1.0/6.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, sim.Score(tt.a, tt.b), 1e-9)
		})
	}
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 3, Distance("kitten", "sitting"))
	assert.Equal(t, 0, Distance("same", "same"))
	assert.Equal(t, 4, Distance("", "four"))
}

func TestJaroWinkler(t *testing.T) {
	sim := JaroWinkler{}

	assert.InDelta(t, 1.0, sim.Score("pattern", "pattern"), 1e-9)
	assert.InDelta(t, 0.0, sim.Score("abc", ""), 1e-9)
	assert.InDelta(t, 0.961, sim.Score("MARTHA", "MARHTA"), 0.001)
	assert.InDelta(t, 0.840, sim.Score("DWAYNE", "DUANE"), 0.001)
	assert.Greater(t, sim.Score("fashion basics", "fashion basics 101"), sim.Score("fashion basics", "completely unrelated"))
}

func TestNew(t *testing.T) {
	sim, err := New("")
	require.NoError(t, err)
	assert.IsType(t, Levenshtein{}, sim)

	sim, err = New(NameJaroWinkler)
	require.NoError(t, err)
	assert.IsType(t, JaroWinkler{}, sim)

	_, err = New("cosine")
	assert.Error(t, err)
}

func TestScoresStayInRange(t *testing.T) {
	pairs := [][2]string{
		{"Intro to Pattern Making", "Intro to Pattern Making II"},
		{"a", "completely different"},
		{"", ""},
	}
	for _, strategy := range []Similarity{Levenshtein{}, JaroWinkler{}} {
		for _, pair := range pairs {
			score := strategy.Score(pair[0], pair[1])
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		}
	}
}
