// Package detection decides whether a scraped course duplicates an existing
// catalog entry or candidate.
package detection

import (
	"context"
	"math"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/similarity"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	activityFunctionName = "detect-duplicate-course"
	activitySource       = "duplicate-detector"
	activityAction       = "duplicate_detected"
)

type CandidateLookup interface {
	GetByHash(ctx context.Context, hash string, excludeID string) (*models.CourseCandidate, error)
	GetByURL(ctx context.Context, url string, excludeID string) (*models.CourseCandidate, error)
	SearchTitle(ctx context.Context, fragment string, excludeID string, limit int) ([]models.CourseCandidate, error)
}

type CatalogLookup interface {
	GetByHash(ctx context.Context, hash string) (*models.PublishedCourse, error)
	GetByURL(ctx context.Context, url string) (*models.PublishedCourse, error)
	SearchTitle(ctx context.Context, fragment string, limit int) ([]models.PublishedCourse, error)
}

type ActivityRecorder interface {
	Record(ctx context.Context, functionName string, results models.ActivityResults) error
}

type DetectRequest struct {
	// CandidateID excludes the candidate itself from the lookups. Empty for
	// courses that are not stored yet.
	CandidateID    string `json:"candidate_id,omitempty" validate:"omitempty,uuid"`
	Title          string `json:"title"`
	SourcePlatform string `json:"source_platform" validate:"required"`
	SourceURL      string `json:"source_url,omitempty" validate:"omitempty,url"`
}

type Detector struct {
	cfg        Config
	candidates CandidateLookup
	catalog    CatalogLookup
	activity   ActivityRecorder
	similarity similarity.Similarity
	logger     ectologger.Logger
}

func NewDetector(cfg Config, candidates CandidateLookup, catalog CatalogLookup, activity ActivityRecorder, sim similarity.Similarity, logger ectologger.Logger) *Detector {
	if sim == nil {
		sim = similarity.Levenshtein{}
	}
	return &Detector{
		cfg:        cfg,
		candidates: candidates,
		catalog:    catalog,
		activity:   activity,
		similarity: sim,
		logger:     logger,
	}
}

// DetectDuplicate runs the hash, URL and title checks in order and returns
// the first match. Lookup failures are logged and reported as no match.
func (d *Detector) DetectDuplicate(ctx context.Context, req DetectRequest) models.DuplicateResult {
	ctx, span := tracing.StartSpan(ctx, "detection.Detector.DetectDuplicate")
	defer span.End()

	logger := d.logger.WithContext(ctx).WithFields(map[string]any{
		"candidate_id": req.CandidateID,
		"title":        req.Title,
	})

	result, step, err := d.detect(ctx, req)
	if err != nil {
		metrics.DetectionErrors.WithLabelValues(step).Inc()
		logger.WithError(err).WithField("step", step).Error("Duplicate lookup failed, treating as no match")
		return models.DuplicateResult{}
	}
	if !result.IsDuplicate {
		return result
	}

	metrics.DuplicatesDetected.WithLabelValues(string(result.Method)).Inc()
	metrics.DetectionConfidence.Observe(float64(result.Confidence))

	fields := map[string]any{
		"existing_id":   result.ExistingID,
		"existing_kind": result.ExistingKind,
		"method":        result.Method,
		"confidence":    result.Confidence,
	}
	status := "info"
	if result.Confidence >= d.cfg.WarnConfidence {
		status = "warning"
		logger.WithFields(fields).Warn("Likely duplicate course detected, recommend merge")
	} else {
		logger.WithFields(fields).Info("Possible duplicate course detected")
	}

	d.recordActivity(ctx, req, result, status)

	return result
}

func (d *Detector) detect(ctx context.Context, req DetectRequest) (models.DuplicateResult, string, error) {
	hash := normalizers.HashIdentifier(req.Title, req.SourcePlatform)
	result, err := d.matchHash(ctx, hash, req.CandidateID)
	if err != nil || result.IsDuplicate {
		return result, "hash", err
	}

	if url := normalizers.NormalizeURL(req.SourceURL); url != "" {
		result, err = d.matchURL(ctx, url, req.CandidateID)
		if err != nil || result.IsDuplicate {
			return result, "url", err
		}
	}

	result, err = d.matchTitle(ctx, req)
	return result, "title", err
}

func (d *Detector) matchHash(ctx context.Context, hash, excludeID string) (models.DuplicateResult, error) {
	course, err := d.catalog.GetByHash(ctx, hash)
	if err != nil {
		return models.DuplicateResult{}, err
	}
	if course != nil {
		return courseMatch(course.ID, models.DuplicateMethodHash, d.cfg.HashConfidence), nil
	}

	candidate, err := d.candidates.GetByHash(ctx, hash, excludeID)
	if err != nil {
		return models.DuplicateResult{}, err
	}
	if candidate != nil {
		return candidateMatch(candidate, models.DuplicateMethodHash, d.cfg.HashConfidence), nil
	}

	return models.DuplicateResult{}, nil
}

func (d *Detector) matchURL(ctx context.Context, url, excludeID string) (models.DuplicateResult, error) {
	course, err := d.catalog.GetByURL(ctx, url)
	if err != nil {
		return models.DuplicateResult{}, err
	}
	if course != nil {
		return courseMatch(course.ID, models.DuplicateMethodURL, d.cfg.URLConfidence), nil
	}

	candidate, err := d.candidates.GetByURL(ctx, url, excludeID)
	if err != nil {
		return models.DuplicateResult{}, err
	}
	if candidate != nil {
		return candidateMatch(candidate, models.DuplicateMethodURL, d.cfg.URLConfidence), nil
	}

	return models.DuplicateResult{}, nil
}

type titleMatch struct {
	score      float64
	sameSource bool
	result     models.DuplicateResult
}

func (d *Detector) matchTitle(ctx context.Context, req DetectRequest) (models.DuplicateResult, error) {
	prefix := normalizers.TitlePrefix(req.Title, d.cfg.TitlePrefixLength)
	title := normalizers.NormalizeTitle(req.Title)
	source := normalizers.NormalizeSource(req.SourcePlatform)

	courses, err := d.catalog.SearchTitle(ctx, prefix, d.cfg.TitleCandidateLimit)
	if err != nil {
		return models.DuplicateResult{}, err
	}
	// TitleCandidateLimit bounds the combined set; catalog rows are taken first.
	var candidates []models.CourseCandidate
	if remaining := d.cfg.TitleCandidateLimit - len(courses); remaining > 0 {
		candidates, err = d.candidates.SearchTitle(ctx, prefix, req.CandidateID, remaining)
		if err != nil {
			return models.DuplicateResult{}, err
		}
	}

	var best *titleMatch
	consider := func(existingTitle string, existingSource *string, result models.DuplicateResult) {
		score := d.similarity.Score(title, normalizers.NormalizeTitle(existingTitle))
		sameSource := existingSource != nil && normalizers.NormalizeSource(*existingSource) == source
		if best != nil {
			// Equal scores go to the same-source record, then to the first seen.
			if score < best.score || (score == best.score && (best.sameSource || !sameSource)) {
				return
			}
		}
		best = &titleMatch{score: score, sameSource: sameSource, result: result}
	}

	for _, course := range courses {
		consider(course.Title, course.SourcePlatform, courseMatch(course.ID, models.DuplicateMethodTitle, 0))
	}
	for i := range candidates {
		candidate := &candidates[i]
		consider(candidate.Title, &candidate.ScraperSource, candidateMatch(candidate, models.DuplicateMethodTitle, 0))
	}

	if best == nil {
		return models.DuplicateResult{}, nil
	}

	confidence, ok := d.titleConfidence(best.score, best.sameSource)
	if !ok {
		return models.DuplicateResult{}, nil
	}
	best.result.Confidence = confidence
	return best.result, nil
}

// titleConfidence scales a similarity score into a confidence, reporting
// false when the score is below every threshold.
func (d *Detector) titleConfidence(score float64, sameSource bool) (int, bool) {
	switch {
	case score > d.cfg.SameSourceThreshold && sameSource:
		return int(math.Round(score * d.cfg.SameSourceScale)), true
	case score > d.cfg.AnySourceThreshold:
		return int(math.Round(score * d.cfg.AnySourceScale)), true
	default:
		return 0, false
	}
}

func (d *Detector) recordActivity(ctx context.Context, req DetectRequest, result models.DuplicateResult, status string) {
	if d.activity == nil {
		return
	}
	err := d.activity.Record(ctx, activityFunctionName, models.ActivityResults{
		Source: activitySource,
		Action: activityAction,
		Status: status,
		Details: map[string]any{
			"candidate_id":  req.CandidateID,
			"existing_id":   result.ExistingID,
			"existing_kind": result.ExistingKind,
			"method":        result.Method,
			"confidence":    result.Confidence,
			"title":         req.Title,
		},
	})
	if err != nil {
		d.logger.WithContext(ctx).WithError(err).Warn("Failed to record duplicate detection activity")
	}
}

func courseMatch(id string, method models.DuplicateMethod, confidence int) models.DuplicateResult {
	return models.DuplicateResult{
		IsDuplicate:  true,
		ExistingID:   id,
		ExistingKind: models.DuplicateKindCourse,
		Method:       method,
		Confidence:   confidence,
	}
}

// candidateMatch points at the catalog entry an approved candidate was
// promoted into, and at the candidate itself otherwise.
func candidateMatch(candidate *models.CourseCandidate, method models.DuplicateMethod, confidence int) models.DuplicateResult {
	if candidate.IsApproved && candidate.PublishedCourseID != nil && *candidate.PublishedCourseID != "" {
		return courseMatch(*candidate.PublishedCourseID, method, confidence)
	}
	return models.DuplicateResult{
		IsDuplicate:  true,
		ExistingID:   candidate.ID,
		ExistingKind: models.DuplicateKindCandidate,
		Method:       method,
		Confidence:   confidence,
	}
}
