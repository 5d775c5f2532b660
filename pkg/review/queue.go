package review

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Queue is the read side of moderation. Listing failures are logged and
// reported as an empty backlog.
type Queue struct {
	candidates CandidateReader
	limit      int
	logger     ectologger.Logger
}

func NewQueue(cfg Config, candidates CandidateReader, logger ectologger.Logger) *Queue {
	return &Queue{
		candidates: candidates,
		limit:      cfg.PendingLimit,
		logger:     logger,
	}
}

// ListPending returns unreviewed candidates, newest first.
func (q *Queue) ListPending(ctx context.Context) []models.CourseCandidate {
	ctx, span := tracing.StartSpan(ctx, "review.Queue.ListPending")
	defer span.End()

	candidates, err := q.candidates.ListPending(ctx, q.limit)
	if err != nil {
		q.logger.WithContext(ctx).WithError(err).Error("Failed to list pending candidates")
		return []models.CourseCandidate{}
	}
	if candidates == nil {
		return []models.CourseCandidate{}
	}
	return candidates
}

// ListBySource returns every candidate scraped from source, reviewed or not.
func (q *Queue) ListBySource(ctx context.Context, source string) []models.CourseCandidate {
	ctx, span := tracing.StartSpan(ctx, "review.Queue.ListBySource")
	defer span.End()

	candidates, err := q.candidates.ListBySource(ctx, normalizers.NormalizeSource(source), q.limit)
	if err != nil {
		q.logger.WithContext(ctx).WithError(err).WithField("scraper_source", source).Error("Failed to list candidates by source")
		return []models.CourseCandidate{}
	}
	if candidates == nil {
		return []models.CourseCandidate{}
	}
	return candidates
}

func (q *Queue) Get(ctx context.Context, id string) (*models.CourseCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Queue.Get")
	defer span.End()

	candidate, err := q.candidates.Get(ctx, id)
	if err != nil {
		return nil, asHTTPError(err, "failed to get course candidate")
	}
	return candidate, nil
}
