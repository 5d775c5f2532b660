// Package review lists the moderation backlog and commits moderator decisions.
package review

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/fern/pkg/models"
)

type Config struct {
	// MergeConfidence is the duplicate confidence at or above which Approve
	// merges into the existing catalog entry. Above 100 disables merging.
	MergeConfidence int
	// ActiveLearnerWindow is how recently an in-progress enrollment must have
	// been updated to block a merge timestamp bump.
	ActiveLearnerWindow time.Duration
	PendingLimit        int
}

func DefaultConfig() Config {
	return Config{
		MergeConfidence:     90,
		ActiveLearnerWindow: 14 * 24 * time.Hour,
		PendingLimit:        500,
	}
}

type CandidateReader interface {
	Get(ctx context.Context, id string) (*models.CourseCandidate, error)
	ListPending(ctx context.Context, limit int) ([]models.CourseCandidate, error)
	ListBySource(ctx context.Context, source string, limit int) ([]models.CourseCandidate, error)
}

type CandidateWriter interface {
	Get(ctx context.Context, id string) (*models.CourseCandidate, error)
	MarkApproved(ctx context.Context, id string, publishedCourseID string, reviewer *string) error
	MarkRejected(ctx context.Context, id string, reason string, reviewer *string) error
}

type CatalogStore interface {
	Get(ctx context.Context, id string) (*models.PublishedCourse, error)
	Create(ctx context.Context, course *models.PublishedCourse) (*models.PublishedCourse, error)
	TouchUpdatedAt(ctx context.Context, id string) error
}

type ProgressCounter interface {
	CountActiveSince(ctx context.Context, courseID string, since time.Time) (int, error)
}

// Transactor runs fn in one storage transaction. database.DB satisfies it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher announces committed decisions to the rest of the platform.
type EventPublisher interface {
	CoursePublished(ctx context.Context, course *models.PublishedCourse, candidate *models.CourseCandidate) error
	CourseMerged(ctx context.Context, courseID string, candidate *models.CourseCandidate) error
	CandidateRejected(ctx context.Context, candidate *models.CourseCandidate) error
}

func isStatus(err error, status int) bool {
	return httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == status
}

// asHTTPError keeps repository status codes and hides anything else behind a 500.
func asHTTPError(err error, message string) error {
	if httperror.IsHTTPError(err) {
		return err
	}
	return httperror.NewHTTPError(http.StatusInternalServerError, message)
}
