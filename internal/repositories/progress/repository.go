package progress

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository reads learner progress. Nothing here writes to course_progress.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// CountActiveSince counts in-progress enrollments on courseID updated after since.
func (r *Repository) CountActiveSince(ctx context.Context, courseID string, since time.Time) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "progress.Repository.CountActiveSince")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("course_progress")
	sb.Where(
		sb.Equal("course_id", courseID),
		sb.Equal("status", models.ProgressStatusInProgress),
		sb.GreaterThan("updated_at", since),
	)

	query, args := sb.Build()
	var count int
	if err := r.db.Conn(ctx).GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("course_id", courseID).Error("Failed to count active learners")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count active learners")
	}

	return count, nil
}
