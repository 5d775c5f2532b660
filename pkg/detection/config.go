package detection

// Config holds the detector's confidence constants and search limits.
type Config struct {
	HashConfidence      int
	URLConfidence       int
	SameSourceThreshold float64
	SameSourceScale     float64
	AnySourceThreshold  float64
	AnySourceScale      float64
	TitlePrefixLength   int
	TitleCandidateLimit int
	// WarnConfidence is the confidence at or above which a match is logged as a warning.
	WarnConfidence int
}

func DefaultConfig() Config {
	return Config{
		HashConfidence:      100,
		URLConfidence:       95,
		SameSourceThreshold: 0.8,
		SameSourceScale:     90,
		AnySourceThreshold:  0.9,
		AnySourceScale:      80,
		TitlePrefixLength:   10,
		TitleCandidateLimit: 5,
		WarnConfidence:      90,
	}
}
