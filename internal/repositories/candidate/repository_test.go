package candidate_test

import (
	"context"
	"net/http"
	"os"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/internal/repositories/candidate"
	"github.com/Ramsey-B/fern/internal/repositories/catalog"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func getTestDB(t *testing.T) database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		t.Skip("DB_HOST not set, skipping integration test")
	}

	cfg := database.ConnectionConfig{
		Driver:   "postgres",
		Host:     dbHost,
		Port:     envOr("DB_PORT", "5432"),
		User:     envOr("DB_USER_NAME", "fern"),
		Password: envOr("DB_PASSWORD", "password"),
		Name:     envOr("DB_NAME", "fern"),
		SSLMode:  "disable",
	}
	logger := getTestLogger()
	db, err := database.Connect(context.Background(), cfg, logger)
	require.NoError(t, err, "Failed to connect to test database")

	instance, ok := db.(*database.DatabaseInstance)
	require.True(t, ok)
	migrations := database.NewMigrationService(logger, &database.MigrationConfig{MigrationFolderPath: "../../../db/pg"})
	require.NoError(t, migrations.MigratePostgres(cfg.Name, instance.DB.DB))

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func newCandidate(title, source string) *models.CourseCandidate {
	embedURL := "https://videos.example.com/" + uuid.New().String()
	return &models.CourseCandidate{
		CourseContent: models.CourseContent{
			Title:    title,
			EmbedURL: &embedURL,
		},
		ScraperSource:  source,
		HashIdentifier: normalizers.HashIdentifier(title, source),
	}
}

func assertStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, httperror.IsHTTPError(err), "expected HTTP error, got: %v", err)
	assert.Equal(t, status, httperror.GetStatusCode(err))
}

func TestRepository_CreateAndLookups(t *testing.T) {
	db := getTestDB(t)
	repo := candidate.NewRepository(db, getTestLogger())
	ctx := context.Background()

	title := "Intro to Pattern Making " + uuid.New().String()[:8]
	created, err := repo.Create(ctx, newCandidate(title, "youtube"))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	fetched, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, title, fetched.Title)
	assert.False(t, fetched.IsReviewed)

	t.Run("by hash", func(t *testing.T) {
		match, err := repo.GetByHash(ctx, created.HashIdentifier, "")
		require.NoError(t, err)
		require.NotNil(t, match)
		assert.Equal(t, created.ID, match.ID)

		match, err = repo.GetByHash(ctx, created.HashIdentifier, created.ID)
		require.NoError(t, err)
		assert.Nil(t, match)
	})

	t.Run("by url", func(t *testing.T) {
		match, err := repo.GetByURL(ctx, *created.EmbedURL, "")
		require.NoError(t, err)
		require.NotNil(t, match)
		assert.Equal(t, created.ID, match.ID)
	})

	t.Run("by title fragment", func(t *testing.T) {
		matches, err := repo.SearchTitle(ctx, "intro TO pattern", "", 500)
		require.NoError(t, err)
		ids := make([]string, 0, len(matches))
		for _, m := range matches {
			ids = append(ids, m.ID)
		}
		assert.Contains(t, ids, created.ID)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.New().String())
		assertStatus(t, err, http.StatusNotFound)
	})
}

func TestRepository_TerminalTransitions(t *testing.T) {
	db := getTestDB(t)
	repo := candidate.NewRepository(db, getTestLogger())
	courses := catalog.NewRepository(db, getTestLogger())
	ctx := context.Background()

	t.Run("approve once", func(t *testing.T) {
		created, err := repo.Create(ctx, newCandidate("Draping "+uuid.New().String()[:8], "vimeo"))
		require.NoError(t, err)

		course, err := courses.Create(ctx, &models.PublishedCourse{CourseContent: created.CourseContent, IsPublished: true})
		require.NoError(t, err)

		reviewer := "mod-1"
		require.NoError(t, repo.MarkApproved(ctx, created.ID, course.ID, &reviewer))
		assertStatus(t, repo.MarkApproved(ctx, created.ID, course.ID, &reviewer), http.StatusConflict)
		assertStatus(t, repo.MarkRejected(ctx, created.ID, "late", &reviewer), http.StatusConflict)

		fetched, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, fetched.IsReviewed)
		assert.True(t, fetched.IsApproved)
		require.NotNil(t, fetched.PublishedCourseID)
		assert.Equal(t, course.ID, *fetched.PublishedCourseID)
		require.NotNil(t, fetched.ReviewedBy)
		assert.Equal(t, "mod-1", *fetched.ReviewedBy)
	})

	t.Run("reject", func(t *testing.T) {
		created, err := repo.Create(ctx, newCandidate("Sewing "+uuid.New().String()[:8], "vimeo"))
		require.NoError(t, err)

		require.NoError(t, repo.MarkRejected(ctx, created.ID, "bad content", nil))

		fetched, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, fetched.IsReviewed)
		assert.False(t, fetched.IsApproved)
		require.NotNil(t, fetched.ReviewNotes)
		assert.Equal(t, "bad content", *fetched.ReviewNotes)
	})

	t.Run("rescore pending only", func(t *testing.T) {
		created, err := repo.Create(ctx, newCandidate("Knitting "+uuid.New().String()[:8], "vimeo"))
		require.NoError(t, err)

		result := models.DuplicateResult{IsDuplicate: true, ExistingID: uuid.New().String(), ExistingKind: models.DuplicateKindCandidate, Method: models.DuplicateMethodTitle, Confidence: 85}
		require.NoError(t, repo.UpdateDuplicate(ctx, created.ID, result))

		fetched, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, fetched.IsDuplicate)
		assert.Equal(t, 85, fetched.DuplicateConfidence)
		require.NotNil(t, fetched.DuplicateMethod)
		assert.Equal(t, models.DuplicateMethodTitle, *fetched.DuplicateMethod)
	})
}

func TestRepository_WithinTxRollsBack(t *testing.T) {
	db := getTestDB(t)
	repo := candidate.NewRepository(db, getTestLogger())
	ctx := context.Background()

	var id string
	err := db.WithinTx(ctx, func(ctx context.Context) error {
		created, err := repo.Create(ctx, newCandidate("Rollback "+uuid.New().String()[:8], "youtube"))
		require.NoError(t, err)
		id = created.ID
		return httperror.NewHTTPError(http.StatusInternalServerError, "abort")
	})
	require.Error(t, err)

	_, err = repo.Get(ctx, id)
	assertStatus(t, err, http.StatusNotFound)
}
