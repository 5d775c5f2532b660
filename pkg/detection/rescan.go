package detection

import (
	"context"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// PendingStore lists the review backlog and stores refreshed duplicate metadata.
type PendingStore interface {
	ListPending(ctx context.Context, limit int) ([]models.CourseCandidate, error)
	UpdateDuplicate(ctx context.Context, id string, result models.DuplicateResult) error
}

type RescanSummary struct {
	Scanned    int `json:"scanned"`
	Duplicates int `json:"duplicates"`
	Changed    int `json:"changed"`
	Failed     int `json:"failed"`
}

// Rescan re-scores every pending candidate against the current thresholds
// and persists the results that changed. Only the listing failure is returned.
func (d *Detector) Rescan(ctx context.Context, store PendingStore, limit int) (RescanSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "detection.Detector.Rescan")
	defer span.End()

	pending, err := store.ListPending(ctx, limit)
	if err != nil {
		d.logger.WithContext(ctx).WithError(err).Error("Failed to list pending candidates for rescan")
		return RescanSummary{}, err
	}

	summary := RescanSummary{Scanned: len(pending)}
	for _, candidate := range pending {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		result := d.DetectDuplicate(ctx, DetectRequest{
			CandidateID:    candidate.ID,
			Title:          candidate.Title,
			SourcePlatform: candidate.ScraperSource,
			SourceURL:      sourceURL(candidate),
		})
		if result.IsDuplicate {
			summary.Duplicates++
		}
		if !changed(candidate, result) {
			continue
		}

		if err := store.UpdateDuplicate(ctx, candidate.ID, result); err != nil {
			summary.Failed++
			d.logger.WithContext(ctx).WithError(err).WithField("candidate_id", candidate.ID).Warn("Failed to store rescanned duplicate metadata")
			continue
		}
		summary.Changed++
	}

	d.logger.WithContext(ctx).WithFields(map[string]any{
		"scanned":    summary.Scanned,
		"duplicates": summary.Duplicates,
		"changed":    summary.Changed,
		"failed":     summary.Failed,
	}).Info("Rescanned pending candidates")

	return summary, nil
}

// PendingDuplicates filters candidates down to those flagged at or above minConfidence.
func PendingDuplicates(candidates []models.CourseCandidate, minConfidence int) []models.CourseCandidate {
	return ectolinq.Filter(candidates, func(c models.CourseCandidate) bool {
		return !c.IsReviewed && c.IsDuplicate && c.DuplicateConfidence >= minConfidence
	})
}

func sourceURL(candidate models.CourseCandidate) string {
	if url := candidate.SourceURL(); url != nil {
		return *url
	}
	return ""
}

func changed(candidate models.CourseCandidate, result models.DuplicateResult) bool {
	if candidate.IsDuplicate != result.IsDuplicate || candidate.DuplicateConfidence != result.Confidence {
		return true
	}
	if !result.IsDuplicate {
		return false
	}
	return candidate.DuplicateOf == nil || *candidate.DuplicateOf != result.ExistingID ||
		candidate.DuplicateKind == nil || *candidate.DuplicateKind != result.ExistingKind ||
		candidate.DuplicateMethod == nil || *candidate.DuplicateMethod != result.Method
}
