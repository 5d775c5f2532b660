package candidate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const table = "course_candidates"

var columns = []string{
	"id", "title", "summary", "category", "level", "hosting_type", "video_url", "embed_url", "external_link", "image_url",
	"instructor", "duration_minutes", "tags", "scraper_source", "hash_identifier",
	"is_reviewed", "is_approved", "review_notes", "reviewed_by", "reviewed_at",
	"is_duplicate", "duplicate_of", "duplicate_kind", "duplicate_method", "duplicate_confidence",
	"published_course_id", "created_at", "updated_at",
}

// Repository handles course candidate persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new course candidate repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new unreviewed candidate
func (r *Repository) Create(ctx context.Context, candidate *models.CourseCandidate) (*models.CourseCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.Create")
	defer span.End()

	if candidate.ID == "" {
		candidate.ID = uuid.New().String()
	}
	if candidate.Tags == nil {
		candidate.Tags = []string{}
	}
	candidate.IsReviewed = false
	candidate.IsApproved = false
	candidate.CreatedAt = time.Now().UTC()
	candidate.UpdatedAt = candidate.CreatedAt

	sb := database.NewInsertBuilder()
	sb.InsertInto(table)
	sb.Cols(columns...)
	sb.Values(
		candidate.ID, candidate.Title, candidate.Summary, candidate.Category, candidate.Level, candidate.HostingType,
		candidate.VideoURL, candidate.EmbedURL, candidate.ExternalLink, candidate.ImageURL,
		candidate.Instructor, candidate.DurationMinutes, candidate.Tags, candidate.ScraperSource, candidate.HashIdentifier,
		candidate.IsReviewed, candidate.IsApproved, candidate.ReviewNotes, candidate.ReviewedBy, candidate.ReviewedAt,
		candidate.IsDuplicate, candidate.DuplicateOf, candidate.DuplicateKind, candidate.DuplicateMethod, candidate.DuplicateConfidence,
		candidate.PublishedCourseID, candidate.CreatedAt, candidate.UpdatedAt,
	)

	query, args := sb.Build()
	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("candidate_id", candidate.ID).Error("Failed to create course candidate")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create course candidate")
	}

	return candidate, nil
}

// Get retrieves a candidate by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.CourseCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.Get")
	defer span.End()

	if _, err := uuid.Parse(id); err != nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("course candidate %s not found", id))
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var candidate models.CourseCandidate
	if err := r.db.Conn(ctx).GetContext(ctx, &candidate, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("course candidate %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).WithField("candidate_id", id).Error("Failed to get course candidate")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get course candidate")
	}

	return &candidate, nil
}

// GetByHash returns the oldest candidate with the hash identifier, or nil.
func (r *Repository) GetByHash(ctx context.Context, hash string, excludeID string) (*models.CourseCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.GetByHash")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("hash_identifier", hash))
	excludeCandidate(sb, excludeID)
	sb.OrderBy("created_at ASC")
	sb.Limit(1)

	return r.getOne(ctx, sb.Build)
}

// GetByURL returns the oldest candidate whose video, embed or external link
// equals url, or nil.
func (r *Repository) GetByURL(ctx context.Context, url string, excludeID string) (*models.CourseCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.GetByURL")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Or(
		sb.Equal("embed_url", url),
		sb.Equal("external_link", url),
		sb.Equal("video_url", url),
	))
	excludeCandidate(sb, excludeID)
	sb.OrderBy("created_at ASC")
	sb.Limit(1)

	return r.getOne(ctx, sb.Build)
}

// SearchTitle returns up to limit candidates whose title contains fragment, case-insensitively.
func (r *Repository) SearchTitle(ctx context.Context, fragment string, excludeID string, limit int) ([]models.CourseCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.SearchTitle")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.ILike("title", database.Contains(fragment)))
	excludeCandidate(sb, excludeID)
	sb.OrderBy("created_at ASC")
	sb.Limit(limit)

	query, args := sb.Build()
	candidates := []models.CourseCandidate{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &candidates, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to search course candidates by title")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to search course candidates")
	}

	return candidates, nil
}

// excludeCandidate drops the candidate itself from a lookup. Ids that are not
// UUIDs cannot match a row, so they add no clause.
func excludeCandidate(sb *sqlbuilder.SelectBuilder, excludeID string) {
	if _, err := uuid.Parse(excludeID); err != nil {
		return
	}
	sb.Where(sb.NotEqual("id", excludeID))
}

// ListPending returns unreviewed candidates, newest first
func (r *Repository) ListPending(ctx context.Context, limit int) ([]models.CourseCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.ListPending")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("is_reviewed", false))
	sb.OrderBy("created_at DESC")
	if limit > 0 {
		sb.Limit(limit)
	}

	query, args := sb.Build()
	candidates := []models.CourseCandidate{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &candidates, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list pending course candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pending course candidates")
	}

	return candidates, nil
}

// ListBySource returns every candidate from one scraper source, newest first
func (r *Repository) ListBySource(ctx context.Context, source string, limit int) ([]models.CourseCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.ListBySource")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("LOWER(TRIM(scraper_source))", source))
	sb.OrderBy("created_at DESC")
	if limit > 0 {
		sb.Limit(limit)
	}

	query, args := sb.Build()
	candidates := []models.CourseCandidate{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &candidates, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("scraper_source", source).Error("Failed to list course candidates by source")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list course candidates by source")
	}

	return candidates, nil
}

// MarkApproved terminally approves a pending candidate. A candidate that is
// already reviewed yields a 409.
func (r *Repository) MarkApproved(ctx context.Context, id string, publishedCourseID string, reviewer *string) error {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.MarkApproved")
	defer span.End()

	now := time.Now().UTC()
	sb := database.NewUpdateBuilder()
	sb.Update(table)
	sb.Set(
		sb.Assign("is_reviewed", true),
		sb.Assign("is_approved", true),
		sb.Assign("published_course_id", publishedCourseID),
		sb.Assign("reviewed_by", reviewer),
		sb.Assign("reviewed_at", now),
		sb.Assign("updated_at", now),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("is_reviewed", false),
	)

	return r.transition(ctx, id, "approve", sb.Build)
}

// MarkRejected terminally rejects a pending candidate with reason. A
// candidate that is already reviewed yields a 409.
func (r *Repository) MarkRejected(ctx context.Context, id string, reason string, reviewer *string) error {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.MarkRejected")
	defer span.End()

	now := time.Now().UTC()
	sb := database.NewUpdateBuilder()
	sb.Update(table)
	sb.Set(
		sb.Assign("is_reviewed", true),
		sb.Assign("is_approved", false),
		sb.Assign("review_notes", reason),
		sb.Assign("reviewed_by", reviewer),
		sb.Assign("reviewed_at", now),
		sb.Assign("updated_at", now),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("is_reviewed", false),
	)

	return r.transition(ctx, id, "reject", sb.Build)
}

// UpdateDuplicate replaces the duplicate metadata of a pending candidate.
func (r *Repository) UpdateDuplicate(ctx context.Context, id string, result models.DuplicateResult) error {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.UpdateDuplicate")
	defer span.End()

	var scored models.CourseCandidate
	scored.ApplyDuplicate(result)

	sb := database.NewUpdateBuilder()
	sb.Update(table)
	sb.Set(
		sb.Assign("is_duplicate", scored.IsDuplicate),
		sb.Assign("duplicate_of", scored.DuplicateOf),
		sb.Assign("duplicate_kind", scored.DuplicateKind),
		sb.Assign("duplicate_method", scored.DuplicateMethod),
		sb.Assign("duplicate_confidence", scored.DuplicateConfidence),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("is_reviewed", false),
	)

	return r.transition(ctx, id, "rescore", sb.Build)
}

func (r *Repository) transition(ctx context.Context, id string, action string, build func() (string, []any)) error {
	query, args := build()
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("candidate_id", id).Errorf("Failed to %s course candidate", action)
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to %s course candidate", action)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusConflict, "course candidate %s is already reviewed", id)
	}

	return nil
}

func (r *Repository) getOne(ctx context.Context, build func() (string, []any)) (*models.CourseCandidate, error) {
	query, args := build()
	var candidate models.CourseCandidate
	if err := r.db.Conn(ctx).GetContext(ctx, &candidate, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to look up course candidate")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to look up course candidate")
	}
	return &candidate, nil
}
