// Package similarity provides pluggable string similarity strategies. Every
// strategy returns a score in [0, 1] where 1 means identical.
package similarity

import "fmt"

type Similarity interface {
	Score(a, b string) float64
}

const (
	NameLevenshtein = "levenshtein"
	NameJaroWinkler = "jaro_winkler"
)

// New returns the strategy registered under name. An empty name selects Levenshtein.
func New(name string) (Similarity, error) {
	switch name {
	case "", NameLevenshtein:
		return Levenshtein{}, nil
	case NameJaroWinkler:
		return JaroWinkler{}, nil
	default:
		return nil, fmt.Errorf("unsupported similarity: %s (use '%s' or '%s')", name, NameLevenshtein, NameJaroWinkler)
	}
}

// Func adapts a plain function into a Similarity.
type Func func(a, b string) float64

func (f Func) Score(a, b string) float64 {
	return f(a, b)
}
