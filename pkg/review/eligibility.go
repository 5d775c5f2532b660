package review

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

// EligibilityPolicy decides whether a catalog entry's updated_at may be
// bumped by a merge without disturbing active learners.
type EligibilityPolicy struct {
	progress ProgressCounter
	window   time.Duration
	now      func() time.Time
	logger   ectologger.Logger
}

func NewEligibilityPolicy(cfg Config, progress ProgressCounter, logger ectologger.Logger) *EligibilityPolicy {
	return &EligibilityPolicy{
		progress: progress,
		window:   cfg.ActiveLearnerWindow,
		now:      time.Now,
		logger:   logger,
	}
}

// IsEligible reports true when no in-progress enrollment on courseID was
// updated inside the window. A failed lookup is not eligible.
func (p *EligibilityPolicy) IsEligible(ctx context.Context, courseID string) bool {
	ctx, span := tracing.StartSpan(ctx, "review.EligibilityPolicy.IsEligible")
	defer span.End()

	since := p.now().UTC().Add(-p.window)
	active, err := p.progress.CountActiveSince(ctx, courseID, since)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithField("course_id", courseID).Warn("Failed to check active learners, skipping catalog update")
		return false
	}
	if active > 0 {
		p.logger.WithContext(ctx).WithFields(map[string]any{
			"course_id":       courseID,
			"active_learners": active,
		}).Debug("Catalog entry has active learners")
		return false
	}
	return true
}
