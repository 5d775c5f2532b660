package catalog

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

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const table = "published_courses"

var columns = []string{
	"id", "title", "summary", "category", "level", "hosting_type", "video_url", "embed_url", "external_link", "image_url",
	"instructor", "duration_minutes", "tags", "is_published", "source_platform", "source_url", "hash_identifier",
	"created_at", "updated_at",
}

// Repository handles published course persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new published course repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a catalog entry
func (r *Repository) Create(ctx context.Context, course *models.PublishedCourse) (*models.PublishedCourse, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.Repository.Create")
	defer span.End()

	if course.ID == "" {
		course.ID = uuid.New().String()
	}
	if course.Tags == nil {
		course.Tags = []string{}
	}
	course.CreatedAt = time.Now().UTC()
	course.UpdatedAt = course.CreatedAt

	sb := database.NewInsertBuilder()
	sb.InsertInto(table)
	sb.Cols(columns...)
	sb.Values(
		course.ID, course.Title, course.Summary, course.Category, course.Level, course.HostingType,
		course.VideoURL, course.EmbedURL, course.ExternalLink, course.ImageURL,
		course.Instructor, course.DurationMinutes, course.Tags, course.IsPublished, course.SourcePlatform, course.SourceURL, course.HashIdentifier,
		course.CreatedAt, course.UpdatedAt,
	)

	query, args := sb.Build()
	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("course_id", course.ID).Error("Failed to create published course")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create published course")
	}

	return course, nil
}

// Get retrieves a catalog entry by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.PublishedCourse, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.Repository.Get")
	defer span.End()

	if _, err := uuid.Parse(id); err != nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("published course %s not found", id))
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("id", id))

	course, err := r.getOne(ctx, sb.Build)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("published course %s not found", id))
	}
	return course, nil
}

// GetByHash returns the oldest catalog entry with the hash identifier, or nil.
func (r *Repository) GetByHash(ctx context.Context, hash string) (*models.PublishedCourse, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.Repository.GetByHash")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("hash_identifier", hash))
	sb.OrderBy("created_at ASC")
	sb.Limit(1)

	return r.getOne(ctx, sb.Build)
}

// GetByURL returns the oldest catalog entry whose source, embed or external
// link equals url, or nil.
func (r *Repository) GetByURL(ctx context.Context, url string) (*models.PublishedCourse, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.Repository.GetByURL")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Or(
		sb.Equal("source_url", url),
		sb.Equal("embed_url", url),
		sb.Equal("external_link", url),
		sb.Equal("video_url", url),
	))
	sb.OrderBy("created_at ASC")
	sb.Limit(1)

	return r.getOne(ctx, sb.Build)
}

// SearchTitle returns up to limit catalog entries whose title contains fragment, case-insensitively.
func (r *Repository) SearchTitle(ctx context.Context, fragment string, limit int) ([]models.PublishedCourse, error) {
	ctx, span := tracing.StartSpan(ctx, "catalog.Repository.SearchTitle")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.ILike("title", database.Contains(fragment)))
	sb.OrderBy("created_at ASC")
	sb.Limit(limit)

	query, args := sb.Build()
	courses := []models.PublishedCourse{}
	if err := r.db.Conn(ctx).SelectContext(ctx, &courses, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to search published courses by title")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to search published courses")
	}

	return courses, nil
}

// TouchUpdatedAt bumps updated_at on a catalog entry
func (r *Repository) TouchUpdatedAt(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "catalog.Repository.TouchUpdatedAt")
	defer span.End()

	sb := database.NewUpdateBuilder()
	sb.Update(table)
	sb.Set(sb.Assign("updated_at", time.Now().UTC()))
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("course_id", id).Error("Failed to touch published course")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update published course")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "published course %s not found", id)
	}

	return nil
}

func (r *Repository) getOne(ctx context.Context, build func() (string, []any)) (*models.PublishedCourse, error) {
	query, args := build()
	var course models.PublishedCourse
	if err := r.db.Conn(ctx).GetContext(ctx, &course, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to look up published course")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to look up published course")
	}
	return &course, nil
}
