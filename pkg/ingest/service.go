// Package ingest turns scraped courses into pending review candidates.
package ingest

import (
	"context"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/detection"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/utils"
)

type CandidateStore interface {
	Create(ctx context.Context, candidate *models.CourseCandidate) (*models.CourseCandidate, error)
}

type DuplicateDetector interface {
	DetectDuplicate(ctx context.Context, req detection.DetectRequest) models.DuplicateResult
}

// Guard suppresses concurrent or repeated deliveries of the same course.
type Guard interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type Service struct {
	candidates CandidateStore
	detector   DuplicateDetector
	guard      Guard
	logger     ectologger.Logger
}

// NewService creates the ingestion service. guard may be nil.
func NewService(candidates CandidateStore, detector DuplicateDetector, guard Guard, logger ectologger.Logger) *Service {
	return &Service{
		candidates: candidates,
		detector:   detector,
		guard:      guard,
		logger:     logger,
	}
}

// Submit validates a scraped course, scores it for duplicates and stores it
// as a pending candidate.
func (s *Service) Submit(ctx context.Context, course models.ScrapedCourse) (*models.CourseCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.Service.Submit")
	defer span.End()

	if err := utils.Validate(course); err != nil {
		metrics.IngestedCandidates.WithLabelValues("invalid").Inc()
		return nil, httperror.WrapError(http.StatusBadRequest, err)
	}

	candidate := newCandidate(course)
	logger := s.logger.WithContext(ctx).WithFields(map[string]any{
		"candidate_id":   candidate.ID,
		"scraper_source": candidate.ScraperSource,
	})

	result := s.detector.DetectDuplicate(ctx, detection.DetectRequest{
		CandidateID:    candidate.ID,
		Title:          candidate.Title,
		SourcePlatform: candidate.ScraperSource,
		SourceURL:      course.SourceURL(),
	})
	candidate.ApplyDuplicate(result)

	created, err := s.candidates.Create(ctx, candidate)
	if err != nil {
		metrics.IngestedCandidates.WithLabelValues("failed").Inc()
		logger.WithError(err).Error("Failed to store course candidate")
		if httperror.IsHTTPError(err) {
			return nil, err
		}
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to store course candidate")
	}

	if created.IsDuplicate {
		metrics.IngestedCandidates.WithLabelValues("duplicate").Inc()
	} else {
		metrics.IngestedCandidates.WithLabelValues("created").Inc()
	}
	logger.WithField("is_duplicate", created.IsDuplicate).Info("Stored course candidate")

	return created, nil
}

// HandleMessage is the Kafka handler for scraped courses. Payloads that can
// never succeed are dropped; storage failures are returned so the message is
// redelivered.
func (s *Service) HandleMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "ingest.Service.HandleMessage")
	defer span.End()

	logger := s.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":  msg.Topic,
		"offset": msg.Offset,
	})

	course, err := msg.ParseScrapedCourse()
	if err != nil {
		metrics.IngestedCandidates.WithLabelValues("invalid").Inc()
		logger.WithError(err).Warn("Dropping undecodable scraped course")
		return nil
	}
	if err := utils.Validate(course); err != nil {
		metrics.IngestedCandidates.WithLabelValues("invalid").Inc()
		logger.WithError(err).Warn("Dropping invalid scraped course")
		return nil
	}

	key := normalizers.HashIdentifier(course.Title, course.ScraperSource)
	guarded := false
	if s.guard != nil {
		acquired, err := s.guard.Acquire(ctx, key)
		switch {
		case err != nil:
			logger.WithError(err).Warn("Ingest guard unavailable, continuing without it")
		case !acquired:
			metrics.IngestedCandidates.WithLabelValues("skipped").Inc()
			logger.WithField("hash_identifier", key).Info("Skipping scraped course already being ingested")
			return nil
		default:
			guarded = true
		}
	}

	if _, err := s.Submit(ctx, *course); err != nil {
		if guarded {
			if releaseErr := s.guard.Release(ctx, key); releaseErr != nil {
				logger.WithError(releaseErr).Warn("Failed to release ingest guard")
			}
		}
		return err
	}
	return nil
}

func newCandidate(course models.ScrapedCourse) *models.CourseCandidate {
	source := strings.TrimSpace(course.ScraperSource)
	content := course.Content()
	content.Title = strings.TrimSpace(content.Title)

	return &models.CourseCandidate{
		ID:             uuid.New().String(),
		CourseContent:  content,
		ScraperSource:  source,
		HashIdentifier: normalizers.HashIdentifier(content.Title, source),
	}
}
