package review

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Transitioner commits the terminal approve or reject decision for a candidate.
type Transitioner struct {
	cfg         Config
	candidates  CandidateWriter
	catalog     CatalogStore
	eligibility *EligibilityPolicy
	tx          Transactor
	events      EventPublisher
	logger      ectologger.Logger
}

func NewTransitioner(cfg Config, candidates CandidateWriter, catalog CatalogStore, eligibility *EligibilityPolicy, tx Transactor, events EventPublisher, logger ectologger.Logger) *Transitioner {
	return &Transitioner{
		cfg:         cfg,
		candidates:  candidates,
		catalog:     catalog,
		eligibility: eligibility,
		tx:          tx,
		events:      events,
		logger:      logger,
	}
}

// Approve promotes a pending candidate and returns the catalog id it now
// belongs to. High-confidence duplicates merge into their existing entry;
// everything else creates a new one. Reviewed candidates yield a 409.
func (t *Transitioner) Approve(ctx context.Context, id string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Transitioner.Approve")
	defer span.End()

	logger := t.logger.WithContext(ctx).WithField("candidate_id", id)

	candidate, err := t.pending(ctx, id)
	if err != nil {
		metrics.ReviewFailures.WithLabelValues("approve").Inc()
		return "", err
	}

	targetID, err := t.mergeTarget(ctx, candidate)
	if err != nil {
		metrics.ReviewFailures.WithLabelValues("approve").Inc()
		logger.WithError(err).Error("Failed to resolve merge target")
		return "", asHTTPError(err, "failed to approve course candidate")
	}

	if targetID != "" {
		if err := t.merge(ctx, candidate, targetID); err != nil {
			metrics.ReviewFailures.WithLabelValues("approve").Inc()
			return "", err
		}
		metrics.ReviewDecisions.WithLabelValues("merged").Inc()
		logger.WithField("course_id", targetID).Info("Approved candidate merged into existing course")
		return targetID, nil
	}

	course, err := t.publish(ctx, candidate)
	if err != nil {
		metrics.ReviewFailures.WithLabelValues("approve").Inc()
		return "", err
	}
	metrics.ReviewDecisions.WithLabelValues("published").Inc()
	logger.WithField("course_id", course.ID).Info("Approved candidate published as new course")
	return course.ID, nil
}

// Reject marks a pending candidate rejected with reason, which may be empty.
func (t *Transitioner) Reject(ctx context.Context, id string, reason string) error {
	ctx, span := tracing.StartSpan(ctx, "review.Transitioner.Reject")
	defer span.End()

	logger := t.logger.WithContext(ctx).WithField("candidate_id", id)

	candidate, err := t.pending(ctx, id)
	if err != nil {
		metrics.ReviewFailures.WithLabelValues("reject").Inc()
		return err
	}

	if err := t.candidates.MarkRejected(ctx, id, reason, appctx.GetReviewer(ctx)); err != nil {
		metrics.ReviewFailures.WithLabelValues("reject").Inc()
		logger.WithError(err).Error("Failed to reject candidate")
		return asHTTPError(err, "failed to reject course candidate")
	}

	candidate.IsReviewed = true
	candidate.IsApproved = false
	candidate.ReviewNotes = &reason
	metrics.ReviewDecisions.WithLabelValues("rejected").Inc()
	logger.Info("Rejected candidate")

	if t.events != nil {
		if err := t.events.CandidateRejected(ctx, candidate); err != nil {
			logger.WithError(err).Warn("Failed to publish candidate rejected event")
		}
	}
	return nil
}

// pending loads the candidate and refuses one that is already reviewed.
func (t *Transitioner) pending(ctx context.Context, id string) (*models.CourseCandidate, error) {
	candidate, err := t.candidates.Get(ctx, id)
	if err != nil {
		if !isStatus(err, http.StatusNotFound) {
			t.logger.WithContext(ctx).WithError(err).WithField("candidate_id", id).Error("Failed to load candidate")
		}
		return nil, asHTTPError(err, "failed to get course candidate")
	}
	if candidate.IsReviewed {
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "course candidate %s is already reviewed", id)
	}
	return candidate, nil
}

// mergeTarget returns the catalog id a candidate should merge into, or ""
// when it should be published as a new course.
func (t *Transitioner) mergeTarget(ctx context.Context, candidate *models.CourseCandidate) (string, error) {
	if !candidate.IsDuplicate || candidate.DuplicateConfidence < t.cfg.MergeConfidence || candidate.DuplicateOf == nil || *candidate.DuplicateOf == "" {
		return "", nil
	}

	courseID := *candidate.DuplicateOf
	if candidate.DuplicateKind != nil && *candidate.DuplicateKind == models.DuplicateKindCandidate {
		original, err := t.candidates.Get(ctx, courseID)
		if isStatus(err, http.StatusNotFound) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		if !original.IsApproved || original.PublishedCourseID == nil {
			return "", nil
		}
		courseID = *original.PublishedCourseID
	}

	if _, err := t.catalog.Get(ctx, courseID); err != nil {
		if isStatus(err, http.StatusNotFound) {
			t.logger.WithContext(ctx).WithField("course_id", courseID).Warn("Duplicate target no longer exists, publishing a new course")
			return "", nil
		}
		return "", err
	}
	return courseID, nil
}

func (t *Transitioner) merge(ctx context.Context, candidate *models.CourseCandidate, courseID string) error {
	logger := t.logger.WithContext(ctx).WithFields(map[string]any{
		"candidate_id": candidate.ID,
		"course_id":    courseID,
	})

	if t.eligibility != nil && t.eligibility.IsEligible(ctx, courseID) {
		if err := t.catalog.TouchUpdatedAt(ctx, courseID); err != nil {
			metrics.CatalogBumpsSkipped.Inc()
			logger.WithError(err).Warn("Failed to bump course updated_at, continuing merge")
		}
	} else {
		metrics.CatalogBumpsSkipped.Inc()
	}

	if err := t.candidates.MarkApproved(ctx, candidate.ID, courseID, appctx.GetReviewer(ctx)); err != nil {
		logger.WithError(err).Error("Failed to mark merged candidate approved")
		return asHTTPError(err, "failed to approve course candidate")
	}

	if t.events != nil {
		if err := t.events.CourseMerged(ctx, courseID, candidate); err != nil {
			logger.WithError(err).Warn("Failed to publish course merged event")
		}
	}
	return nil
}

// publish creates the catalog entry and marks the candidate approved in one
// transaction, so neither write survives without the other.
func (t *Transitioner) publish(ctx context.Context, candidate *models.CourseCandidate) (*models.PublishedCourse, error) {
	logger := t.logger.WithContext(ctx).WithField("candidate_id", candidate.ID)

	course := newPublishedCourse(candidate)
	err := t.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := t.candidates.MarkApproved(ctx, candidate.ID, course.ID, appctx.GetReviewer(ctx)); err != nil {
			return err
		}
		_, err := t.catalog.Create(ctx, course)
		return err
	})
	if err != nil {
		logger.WithError(err).Error("Failed to publish candidate")
		return nil, asHTTPError(err, "failed to approve course candidate")
	}

	if t.events != nil {
		if err := t.events.CoursePublished(ctx, course, candidate); err != nil {
			logger.WithError(err).Warn("Failed to publish course published event")
		}
	}
	return course, nil
}

func newPublishedCourse(candidate *models.CourseCandidate) *models.PublishedCourse {
	hash := candidate.HashIdentifier
	if hash == "" {
		hash = normalizers.HashIdentifier(candidate.Title, candidate.ScraperSource)
	}
	source := candidate.ScraperSource

	return &models.PublishedCourse{
		ID:             uuid.New().String(),
		CourseContent:  candidate.CourseContent,
		IsPublished:    true,
		SourcePlatform: &source,
		SourceURL:      candidate.SourceURL(),
		HashIdentifier: &hash,
	}
}
