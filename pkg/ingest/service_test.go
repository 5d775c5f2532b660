package ingest

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/memstore"
	"github.com/Ramsey-B/fern/pkg/detection"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

type fakeGuard struct {
	held       map[string]bool
	acquireErr error
	released   []string
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{held: map[string]bool{}}
}

func (g *fakeGuard) Acquire(_ context.Context, key string) (bool, error) {
	if g.acquireErr != nil {
		return false, g.acquireErr
	}
	if g.held[key] {
		return false, nil
	}
	g.held[key] = true
	return true, nil
}

func (g *fakeGuard) Release(_ context.Context, key string) error {
	delete(g.held, key)
	g.released = append(g.released, key)
	return nil
}

func newTestService(store *memstore.Store, guard Guard) *Service {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	detector := detection.NewDetector(detection.DefaultConfig(), store.Candidates(), store.Catalog(), store.Activity(), nil, logger)
	return NewService(store.Candidates(), detector, guard, logger)
}

func message(value string) *kafka.IncomingMessage {
	return &kafka.IncomingMessage{Topic: "scraped-courses", Value: []byte(value)}
}

func TestSubmit(t *testing.T) {
	store := memstore.New()
	service := newTestService(store, nil)

	candidate, err := service.Submit(context.Background(), models.ScrapedCourse{
		Title:         "  Intro to Pattern Making ",
		ScraperSource: "youtube",
		ExternalLink:  "https://example.com/pattern",
		Tags:          []string{"sewing"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, candidate.ID)
	assert.Equal(t, "Intro to Pattern Making", candidate.Title)
	assert.Equal(t, normalizers.HashIdentifier("Intro to Pattern Making", "youtube"), candidate.HashIdentifier)
	assert.False(t, candidate.IsReviewed)
	assert.False(t, candidate.IsDuplicate)
	assert.Equal(t, 1, store.CandidateCount())
}

func TestSubmit_FlagsDuplicate(t *testing.T) {
	store := memstore.New()
	service := newTestService(store, nil)
	first, err := service.Submit(context.Background(), models.ScrapedCourse{Title: "Draping", ScraperSource: "vimeo"})
	require.NoError(t, err)

	second, err := service.Submit(context.Background(), models.ScrapedCourse{Title: "DRAPING", ScraperSource: "Vimeo"})
	require.NoError(t, err)

	assert.True(t, second.IsDuplicate)
	assert.Equal(t, 100, second.DuplicateConfidence)
	require.NotNil(t, second.DuplicateOf)
	assert.Equal(t, first.ID, *second.DuplicateOf)
	assert.Equal(t, models.DuplicateKindCandidate, *second.DuplicateKind)
}

func TestSubmit_Invalid(t *testing.T) {
	store := memstore.New()

	_, err := newTestService(store, nil).Submit(context.Background(), models.ScrapedCourse{Title: "Draping"})

	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	assert.Equal(t, 0, store.CandidateCount())
}

func TestSubmit_StoreFailure(t *testing.T) {
	store := memstore.New()
	store.FailOn("candidates.Create", errors.New("connection reset"))

	_, err := newTestService(store, nil).Submit(context.Background(), models.ScrapedCourse{Title: "Draping", ScraperSource: "vimeo"})

	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, httperror.GetStatusCode(err))
}

func TestHandleMessage(t *testing.T) {
	t.Run("stores valid payload", func(t *testing.T) {
		store := memstore.New()
		guard := newFakeGuard()

		err := newTestService(store, guard).HandleMessage(context.Background(), message(`{"title":"Draping","scraper_source":"vimeo"}`))

		require.NoError(t, err)
		assert.Equal(t, 1, store.CandidateCount())
		assert.True(t, guard.held[normalizers.HashIdentifier("Draping", "vimeo")])
	})

	t.Run("skips redelivery while guarded", func(t *testing.T) {
		store := memstore.New()
		service := newTestService(store, newFakeGuard())
		payload := `{"title":"Draping","scraper_source":"vimeo"}`

		require.NoError(t, service.HandleMessage(context.Background(), message(payload)))
		require.NoError(t, service.HandleMessage(context.Background(), message(payload)))

		assert.Equal(t, 1, store.CandidateCount())
	})

	t.Run("drops undecodable payload", func(t *testing.T) {
		store := memstore.New()

		err := newTestService(store, newFakeGuard()).HandleMessage(context.Background(), message(`{not json`))

		assert.NoError(t, err)
		assert.Equal(t, 0, store.CandidateCount())
	})

	t.Run("drops invalid payload", func(t *testing.T) {
		store := memstore.New()

		err := newTestService(store, newFakeGuard()).HandleMessage(context.Background(), message(`{"title":"Draping"}`))

		assert.NoError(t, err)
		assert.Equal(t, 0, store.CandidateCount())
	})

	t.Run("releases guard on storage failure", func(t *testing.T) {
		store := memstore.New()
		store.FailOn("candidates.Create", errors.New("connection reset"))
		guard := newFakeGuard()

		err := newTestService(store, guard).HandleMessage(context.Background(), message(`{"title":"Draping","scraper_source":"vimeo"}`))

		assert.Error(t, err)
		assert.Empty(t, guard.held)
		assert.Len(t, guard.released, 1)
	})

	t.Run("continues when guard is unavailable", func(t *testing.T) {
		store := memstore.New()
		guard := newFakeGuard()
		guard.acquireErr = errors.New("redis down")

		err := newTestService(store, guard).HandleMessage(context.Background(), message(`{"title":"Draping","scraper_source":"vimeo"}`))

		assert.NoError(t, err)
		assert.Equal(t, 1, store.CandidateCount())
	})
}
