package similarity

// JaroWinkler boosts the Jaro score for a shared prefix of up to four runes.
type JaroWinkler struct{}

func (JaroWinkler) Score(a, b string) float64 {
	ar, br := []rune(a), []rune(b)
	if string(ar) == string(br) {
		return 1.0
	}

	j := jaro(ar, br)

	prefixLen := 0
	for i := 0; i < len(ar) && i < len(br) && i < 4; i++ {
		if ar[i] != br[i] {
			break
		}
		prefixLen++
	}

	return j + float64(prefixLen)*0.1*(1.0-j)
}

func jaro(a, b []rune) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	matchDist := max(max(len(a), len(b))/2-1, 0)

	aMatches := make([]bool, len(a))
	bMatches := make([]bool, len(b))

	matches := 0
	for i := range a {
		start := max(0, i-matchDist)
		end := min(len(b), i+matchDist+1)
		for j := start; j < end; j++ {
			if bMatches[j] || a[i] != b[j] {
				continue
			}
			aMatches[i] = true
			bMatches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	transpositions := 0
	k := 0
	for i := range a {
		if !aMatches[i] {
			continue
		}
		for !bMatches[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	t := float64(transpositions) / 2

	return (m/float64(len(a)) + m/float64(len(b)) + (m-t)/m) / 3
}
