package activitylog

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository appends audit rows to activity_logs
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

func (r *Repository) Record(ctx context.Context, functionName string, results models.ActivityResults) error {
	ctx, span := tracing.StartSpan(ctx, "activitylog.Repository.Record")
	defer span.End()

	if results.Timestamp.IsZero() {
		results.Timestamp = time.Now().UTC()
	}
	entry := models.ActivityLog{
		ID:           uuid.New().String(),
		FunctionName: functionName,
		Results:      database.NewJSONB(results),
		CreatedAt:    time.Now().UTC(),
	}

	sb := database.NewInsertBuilder()
	sb.InsertInto("activity_logs")
	sb.Cols("id", "function_name", "results", "created_at")
	sb.Values(entry.ID, entry.FunctionName, entry.Results, entry.CreatedAt)

	query, args := sb.Build()
	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("function_name", functionName).Error("Failed to record activity")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to record activity")
	}

	return nil
}
