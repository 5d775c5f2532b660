// Package events emits course lifecycle events for moderation decisions.
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Publisher is the subset of kafka.Producer the emitter needs.
type Publisher interface {
	PublishCourseEvent(ctx context.Context, event *kafka.CourseEvent) error
}

// Emitter turns review decisions into course events
type Emitter struct {
	producer Publisher
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// CoursePublished emits course.published for a newly created catalog entry
func (e *Emitter) CoursePublished(ctx context.Context, course *models.PublishedCourse, candidate *models.CourseCandidate) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.CoursePublished")
	defer span.End()

	return e.emit(ctx, EventTypeCoursePublished, course.ID, candidate, CoursePublishedData{
		Title:          course.Title,
		SourcePlatform: course.SourcePlatform,
		SourceURL:      course.SourceURL,
		HashIdentifier: course.HashIdentifier,
	})
}

// CourseMerged emits course.merged when a candidate folds into courseID
func (e *Emitter) CourseMerged(ctx context.Context, courseID string, candidate *models.CourseCandidate) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.CourseMerged")
	defer span.End()

	return e.emit(ctx, EventTypeCourseMerged, courseID, candidate, CourseMergedData{
		Title:               candidate.Title,
		ScraperSource:       candidate.ScraperSource,
		DuplicateMethod:     candidate.DuplicateMethod,
		DuplicateConfidence: candidate.DuplicateConfidence,
	})
}

// CandidateRejected emits candidate.rejected
func (e *Emitter) CandidateRejected(ctx context.Context, candidate *models.CourseCandidate) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.CandidateRejected")
	defer span.End()

	return e.emit(ctx, EventTypeCandidateRejected, "", candidate, CandidateRejectedData{
		Title:         candidate.Title,
		ScraperSource: candidate.ScraperSource,
		Reason:        candidate.ReviewNotes,
	})
}

func (e *Emitter) emit(ctx context.Context, eventType EventType, courseID string, candidate *models.CourseCandidate, data any) error {
	event := newEvent(eventType, courseID, candidate)
	if event.ReviewedBy == "" {
		event.ReviewedBy = appctx.GetUserID(ctx)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	event.Data = payload

	if err := e.producer.PublishCourseEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", eventType)
		return err
	}
	return nil
}
