package review

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/memstore"
	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/detection"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type recordedEvent struct {
	kind        string
	courseID    string
	candidateID string
}

type eventRecorder struct {
	events []recordedEvent
	err    error
}

func (r *eventRecorder) CoursePublished(_ context.Context, course *models.PublishedCourse, candidate *models.CourseCandidate) error {
	r.events = append(r.events, recordedEvent{"course.published", course.ID, candidate.ID})
	return r.err
}

func (r *eventRecorder) CourseMerged(_ context.Context, courseID string, candidate *models.CourseCandidate) error {
	r.events = append(r.events, recordedEvent{"course.merged", courseID, candidate.ID})
	return r.err
}

func (r *eventRecorder) CandidateRejected(_ context.Context, candidate *models.CourseCandidate) error {
	r.events = append(r.events, recordedEvent{"candidate.rejected", "", candidate.ID})
	return r.err
}

type fixture struct {
	store        *memstore.Store
	events       *eventRecorder
	policy       *EligibilityPolicy
	transitioner *Transitioner
}

func newFixture() *fixture {
	store := memstore.New()
	events := &eventRecorder{}
	policy := NewEligibilityPolicy(DefaultConfig(), store.Progress(), testLogger())
	policy.now = func() time.Time { return now }
	return &fixture{
		store:        store,
		events:       events,
		policy:       policy,
		transitioner: NewTransitioner(DefaultConfig(), store.Candidates(), store.Catalog(), policy, store, events, testLogger()),
	}
}

func strPtr(s string) *string { return &s }

func pendingCandidate(title, source string) models.CourseCandidate {
	return models.CourseCandidate{
		CourseContent: models.CourseContent{
			Title:        title,
			ExternalLink: strPtr("https://example.com/" + source),
		},
		ScraperSource:  source,
		HashIdentifier: normalizers.HashIdentifier(title, source),
	}
}

func duplicateOf(candidate models.CourseCandidate, id string, kind models.DuplicateKind, confidence int) models.CourseCandidate {
	candidate.ApplyDuplicate(models.DuplicateResult{
		IsDuplicate:  true,
		ExistingID:   id,
		ExistingKind: kind,
		Method:       models.DuplicateMethodTitle,
		Confidence:   confidence,
	})
	return candidate
}

func statusOf(err error) int {
	if !httperror.IsHTTPError(err) {
		return 0
	}
	return httperror.GetStatusCode(err)
}

func TestApprove_CreatesCourse(t *testing.T) {
	f := newFixture()
	candidate := f.store.PutCandidate(pendingCandidate("Intro to Pattern Making", "youtube"))
	ctx := appctx.SetUserID(context.Background(), "mod-1")

	courseID, err := f.transitioner.Approve(ctx, candidate.ID)
	require.NoError(t, err)
	require.NotEmpty(t, courseID)

	course, ok := f.store.Course(courseID)
	require.True(t, ok)
	assert.Equal(t, "Intro to Pattern Making", course.Title)
	assert.True(t, course.IsPublished)
	require.NotNil(t, course.SourcePlatform)
	assert.Equal(t, "youtube", *course.SourcePlatform)
	require.NotNil(t, course.SourceURL)
	assert.Equal(t, "https://example.com/youtube", *course.SourceURL)
	require.NotNil(t, course.HashIdentifier)
	assert.Equal(t, candidate.HashIdentifier, *course.HashIdentifier)

	stored, err := f.store.Candidates().Get(ctx, candidate.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsReviewed)
	assert.True(t, stored.IsApproved)
	require.NotNil(t, stored.PublishedCourseID)
	assert.Equal(t, courseID, *stored.PublishedCourseID)
	require.NotNil(t, stored.ReviewedBy)
	assert.Equal(t, "mod-1", *stored.ReviewedBy)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, recordedEvent{"course.published", courseID, candidate.ID}, f.events.events[0])
}

func TestApprove_MergesHighConfidenceDuplicate(t *testing.T) {
	f := newFixture()
	f.store.PutCourse(models.PublishedCourse{ID: "course-1", CourseContent: models.CourseContent{Title: "Draping Basics"}})
	before, _ := f.store.Course("course-1")
	candidate := f.store.PutCandidate(duplicateOf(pendingCandidate("Draping Basics 101", "vimeo"), "course-1", models.DuplicateKindCourse, 95))

	courseID, err := f.transitioner.Approve(context.Background(), candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, "course-1", courseID)
	assert.Equal(t, 1, f.store.CourseCount())

	after, _ := f.store.Course("course-1")
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))

	stored, err := f.store.Candidates().Get(context.Background(), candidate.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsApproved)
	assert.Equal(t, "course-1", *stored.PublishedCourseID)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, "course.merged", f.events.events[0].kind)
}

func TestApprove_LowConfidenceDuplicateCreatesCourse(t *testing.T) {
	f := newFixture()
	f.store.PutCourse(models.PublishedCourse{ID: "course-1", CourseContent: models.CourseContent{Title: "Draping Basics"}})
	candidate := f.store.PutCandidate(duplicateOf(pendingCandidate("Draping Basics 101", "vimeo"), "course-1", models.DuplicateKindCourse, 80))

	courseID, err := f.transitioner.Approve(context.Background(), candidate.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "course-1", courseID)
	assert.Equal(t, 2, f.store.CourseCount())
}

func TestApprove_MergeThroughApprovedCandidate(t *testing.T) {
	f := newFixture()
	f.store.PutCourse(models.PublishedCourse{ID: "course-1", CourseContent: models.CourseContent{Title: "Draping"}})
	original := pendingCandidate("Draping", "vimeo")
	original.IsReviewed = true
	original.IsApproved = true
	original.PublishedCourseID = strPtr("course-1")
	original = f.store.PutCandidate(original)
	candidate := f.store.PutCandidate(duplicateOf(pendingCandidate("Draping", "youtube"), original.ID, models.DuplicateKindCandidate, 95))

	courseID, err := f.transitioner.Approve(context.Background(), candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, "course-1", courseID)
	assert.Equal(t, 1, f.store.CourseCount())
}

func TestApprove_PendingCandidateTargetCreatesCourse(t *testing.T) {
	f := newFixture()
	original := f.store.PutCandidate(pendingCandidate("Draping", "vimeo"))
	candidate := f.store.PutCandidate(duplicateOf(pendingCandidate("Draping", "youtube"), original.ID, models.DuplicateKindCandidate, 95))

	courseID, err := f.transitioner.Approve(context.Background(), candidate.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, courseID)
	assert.Equal(t, 1, f.store.CourseCount())
}

func TestApprove_MissingTargetCreatesCourse(t *testing.T) {
	f := newFixture()
	candidate := f.store.PutCandidate(duplicateOf(pendingCandidate("Draping", "vimeo"), "gone", models.DuplicateKindCourse, 100))

	courseID, err := f.transitioner.Approve(context.Background(), candidate.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "gone", courseID)
	assert.Equal(t, 1, f.store.CourseCount())
}

func TestApprove_AlreadyReviewed(t *testing.T) {
	f := newFixture()
	f.store.PutCourse(models.PublishedCourse{ID: "course-1", CourseContent: models.CourseContent{Title: "Draping"}})
	candidate := f.store.PutCandidate(duplicateOf(pendingCandidate("Draping", "vimeo"), "course-1", models.DuplicateKindCourse, 100))

	first, err := f.transitioner.Approve(context.Background(), candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, "course-1", first)

	second, err := f.transitioner.Approve(context.Background(), candidate.ID)
	assert.Empty(t, second)
	assert.Equal(t, http.StatusConflict, statusOf(err))
	assert.Equal(t, 1, f.store.CourseCount())
	assert.Len(t, f.events.events, 1)
}

func TestApprove_CreatePathNotRepeated(t *testing.T) {
	f := newFixture()
	candidate := f.store.PutCandidate(pendingCandidate("Draping", "vimeo"))

	_, err := f.transitioner.Approve(context.Background(), candidate.ID)
	require.NoError(t, err)
	_, err = f.transitioner.Approve(context.Background(), candidate.ID)

	assert.Equal(t, http.StatusConflict, statusOf(err))
	assert.Equal(t, 1, f.store.CourseCount())
}

func TestApprove_NotFound(t *testing.T) {
	f := newFixture()

	courseID, err := f.transitioner.Approve(context.Background(), "missing")

	assert.Empty(t, courseID)
	assert.Equal(t, http.StatusNotFound, statusOf(err))
}

func TestApprove_CreateFailureRollsBack(t *testing.T) {
	f := newFixture()
	candidate := f.store.PutCandidate(pendingCandidate("Draping", "vimeo"))
	f.store.FailOn("catalog.Create", errors.New("insert failed"))

	courseID, err := f.transitioner.Approve(context.Background(), candidate.ID)

	assert.Empty(t, courseID)
	assert.Equal(t, http.StatusInternalServerError, statusOf(err))
	assert.Equal(t, 0, f.store.CourseCount())
	stored, getErr := f.store.Candidates().Get(context.Background(), candidate.ID)
	require.NoError(t, getErr)
	assert.False(t, stored.IsReviewed)
	assert.Nil(t, stored.PublishedCourseID)
	assert.Empty(t, f.events.events)
}

func TestApprove_BumpFailureDoesNotBlockMerge(t *testing.T) {
	f := newFixture()
	f.store.PutCourse(models.PublishedCourse{ID: "course-1", CourseContent: models.CourseContent{Title: "Draping"}})
	candidate := f.store.PutCandidate(duplicateOf(pendingCandidate("Draping", "vimeo"), "course-1", models.DuplicateKindCourse, 100))
	f.store.FailOn("catalog.TouchUpdatedAt", errors.New("timeout"))

	courseID, err := f.transitioner.Approve(context.Background(), candidate.ID)

	require.NoError(t, err)
	assert.Equal(t, "course-1", courseID)
}

func TestApprove_ActiveLearnersSkipBump(t *testing.T) {
	f := newFixture()
	f.store.PutCourse(models.PublishedCourse{ID: "course-1", CourseContent: models.CourseContent{Title: "Draping"}})
	before, _ := f.store.Course("course-1")
	f.store.PutProgress(models.CourseProgress{CourseID: "course-1", Status: models.ProgressStatusInProgress, UpdatedAt: now.Add(-48 * time.Hour)})
	candidate := f.store.PutCandidate(duplicateOf(pendingCandidate("Draping", "vimeo"), "course-1", models.DuplicateKindCourse, 100))

	courseID, err := f.transitioner.Approve(context.Background(), candidate.ID)

	require.NoError(t, err)
	assert.Equal(t, "course-1", courseID)
	after, _ := f.store.Course("course-1")
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestApprove_EventFailureIsIgnored(t *testing.T) {
	f := newFixture()
	f.events.err = errors.New("broker down")
	candidate := f.store.PutCandidate(pendingCandidate("Draping", "vimeo"))

	courseID, err := f.transitioner.Approve(context.Background(), candidate.ID)

	require.NoError(t, err)
	assert.NotEmpty(t, courseID)
}

func TestReject(t *testing.T) {
	f := newFixture()
	candidate := f.store.PutCandidate(pendingCandidate("Draping", "vimeo"))
	ctx := appctx.SetUserID(context.Background(), "mod-2")

	require.NoError(t, f.transitioner.Reject(ctx, candidate.ID, "bad content"))

	stored, err := f.store.Candidates().Get(ctx, candidate.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsReviewed)
	assert.False(t, stored.IsApproved)
	require.NotNil(t, stored.ReviewNotes)
	assert.Equal(t, "bad content", *stored.ReviewNotes)
	assert.Equal(t, "mod-2", *stored.ReviewedBy)
	assert.Equal(t, 0, f.store.CourseCount())

	require.Len(t, f.events.events, 1)
	assert.Equal(t, "candidate.rejected", f.events.events[0].kind)
}

func TestReject_Errors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		f := newFixture()
		assert.Equal(t, http.StatusNotFound, statusOf(f.transitioner.Reject(context.Background(), "missing", "")))
	})

	t.Run("already reviewed", func(t *testing.T) {
		f := newFixture()
		candidate := f.store.PutCandidate(pendingCandidate("Draping", "vimeo"))
		require.NoError(t, f.transitioner.Reject(context.Background(), candidate.ID, "first"))

		err := f.transitioner.Reject(context.Background(), candidate.ID, "second")

		assert.Equal(t, http.StatusConflict, statusOf(err))
		stored, _ := f.store.Candidates().Get(context.Background(), candidate.ID)
		assert.Equal(t, "first", *stored.ReviewNotes)
	})

	t.Run("storage failure", func(t *testing.T) {
		f := newFixture()
		candidate := f.store.PutCandidate(pendingCandidate("Draping", "vimeo"))
		f.store.FailOn("candidates.MarkRejected", errors.New("connection reset"))

		err := f.transitioner.Reject(context.Background(), candidate.ID, "spam")

		assert.Equal(t, http.StatusInternalServerError, statusOf(err))
		assert.Empty(t, f.events.events)
	})
}

func TestRoundTrip(t *testing.T) {
	f := newFixture()
	detector := detection.NewDetector(detection.DefaultConfig(), f.store.Candidates(), f.store.Catalog(), f.store.Activity(), nil, testLogger())
	ctx := context.Background()

	first := pendingCandidate("Intro to Pattern Making", "youtube")
	first.ID = "candidate-1"
	result := detector.DetectDuplicate(ctx, detection.DetectRequest{CandidateID: first.ID, Title: first.Title, SourcePlatform: first.ScraperSource})
	assert.False(t, result.IsDuplicate)
	first.ApplyDuplicate(result)
	f.store.PutCandidate(first)

	courseID, err := f.transitioner.Approve(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.CourseCount())
	course, _ := f.store.Course(courseID)
	assert.Equal(t, "Intro to Pattern Making", course.Title)
	assert.Equal(t, "youtube", *course.SourcePlatform)

	result = detector.DetectDuplicate(ctx, detection.DetectRequest{CandidateID: "candidate-2", Title: "Intro to Pattern Making", SourcePlatform: "youtube"})
	assert.True(t, result.IsDuplicate)
	assert.Equal(t, 100, result.Confidence)
	assert.Equal(t, courseID, result.ExistingID)
	assert.Equal(t, models.DuplicateKindCourse, result.ExistingKind)
}

func TestEligibility(t *testing.T) {
	tests := []struct {
		name      string
		status    models.ProgressStatus
		updatedAt time.Time
		expected  bool
	}{
		{"active two days ago", models.ProgressStatusInProgress, now.Add(-2 * 24 * time.Hour), false},
		{"active twenty days ago", models.ProgressStatusInProgress, now.Add(-20 * 24 * time.Hour), true},
		{"completed yesterday", models.ProgressStatusCompleted, now.Add(-24 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.store.PutProgress(models.CourseProgress{CourseID: "course-1", Status: tt.status, UpdatedAt: tt.updatedAt})

			assert.Equal(t, tt.expected, f.policy.IsEligible(context.Background(), "course-1"))
		})
	}

	t.Run("no enrollments", func(t *testing.T) {
		assert.True(t, newFixture().policy.IsEligible(context.Background(), "course-1"))
	})

	t.Run("lookup failure", func(t *testing.T) {
		f := newFixture()
		f.store.FailOn("progress.CountActiveSince", errors.New("timeout"))
		assert.False(t, f.policy.IsEligible(context.Background(), "course-1"))
	})
}

func TestQueue(t *testing.T) {
	f := newFixture()
	older := f.store.PutCandidate(pendingCandidate("Draping", "YouTube"))
	newer := f.store.PutCandidate(pendingCandidate("Pleating", "youtube"))
	reviewed := pendingCandidate("Smocking", "vimeo")
	reviewed.IsReviewed = true
	f.store.PutCandidate(reviewed)
	queue := NewQueue(DefaultConfig(), f.store.Candidates(), testLogger())

	pending := queue.ListPending(context.Background())
	require.Len(t, pending, 2)
	assert.Equal(t, newer.ID, pending[0].ID)
	assert.Equal(t, older.ID, pending[1].ID)

	assert.Len(t, queue.ListBySource(context.Background(), " YOUTUBE "), 2)
	assert.Len(t, queue.ListBySource(context.Background(), "vimeo"), 1)
	assert.Empty(t, queue.ListBySource(context.Background(), "udemy"))

	_, err := queue.Get(context.Background(), "missing")
	assert.Equal(t, http.StatusNotFound, statusOf(err))
}

func TestQueue_ListFailureReturnsEmpty(t *testing.T) {
	f := newFixture()
	f.store.PutCandidate(pendingCandidate("Draping", "vimeo"))
	f.store.FailOn("candidates.ListPending", errors.New("connection refused"))
	f.store.FailOn("candidates.ListBySource", errors.New("connection refused"))
	queue := NewQueue(DefaultConfig(), f.store.Candidates(), testLogger())

	pending := queue.ListPending(context.Background())
	assert.NotNil(t, pending)
	assert.Empty(t, pending)

	bySource := queue.ListBySource(context.Background(), "vimeo")
	assert.NotNil(t, bySource)
	assert.Empty(t, bySource)
}
