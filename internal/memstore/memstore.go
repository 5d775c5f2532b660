// Package memstore holds in-memory stand-ins for the Postgres repositories.
// Every method mirrors the repository of the same name, including its
// not-found and conflict errors.
package memstore

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
)

type ActivityEntry struct {
	FunctionName string
	Results      models.ActivityResults
}

type Store struct {
	mu         sync.Mutex
	candidates map[string]models.CourseCandidate
	courses    map[string]models.PublishedCourse
	progress   []models.CourseProgress
	activity   []ActivityEntry
	failures   map[string]error
	clock      time.Time
}

func New() *Store {
	return &Store{
		candidates: map[string]models.CourseCandidate{},
		courses:    map[string]models.PublishedCourse{},
		failures:   map[string]error{},
		clock:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// FailOn makes the named operation (for example "candidates.GetByHash") return err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *Store) fail(op string) error {
	return s.failures[op]
}

// tick returns a strictly increasing timestamp so ordering by creation is stable.
func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *Store) Candidates() *Candidates { return &Candidates{s} }
func (s *Store) Catalog() *Catalog       { return &Catalog{s} }
func (s *Store) Progress() *Progress     { return &Progress{s} }
func (s *Store) Activity() *Activity     { return &Activity{s} }

// CandidateCount returns the number of stored candidates.
func (s *Store) CandidateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.candidates)
}

// CourseCount returns the number of catalog entries.
func (s *Store) CourseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.courses)
}

// Course returns a catalog entry by id.
func (s *Store) Course(id string) (models.PublishedCourse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	course, ok := s.courses[id]
	return course, ok
}

// PutCourse stores a catalog entry as-is.
func (s *Store) PutCourse(course models.PublishedCourse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if course.ID == "" {
		course.ID = uuid.New().String()
	}
	if course.CreatedAt.IsZero() {
		course.CreatedAt = s.tick()
		course.UpdatedAt = course.CreatedAt
	}
	s.courses[course.ID] = course
}

// PutCandidate stores a candidate as-is, keeping its review state.
func (s *Store) PutCandidate(candidate models.CourseCandidate) models.CourseCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	if candidate.ID == "" {
		candidate.ID = uuid.New().String()
	}
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = s.tick()
		candidate.UpdatedAt = candidate.CreatedAt
	}
	s.candidates[candidate.ID] = candidate
	return candidate
}

// PutProgress stores a learner progress row.
func (s *Store) PutProgress(progress models.CourseProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, progress)
}

// ActivityEntries returns the recorded activity rows.
func (s *Store) ActivityEntries() []ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ActivityEntry(nil), s.activity...)
}

// WithinTx snapshots the store and restores it when fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := s.fail("WithinTx"); err != nil {
		return err
	}

	s.mu.Lock()
	candidates := make(map[string]models.CourseCandidate, len(s.candidates))
	for k, v := range s.candidates {
		candidates[k] = v
	}
	courses := make(map[string]models.PublishedCourse, len(s.courses))
	for k, v := range s.courses {
		courses[k] = v
	}
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.candidates = candidates
		s.courses = courses
		s.mu.Unlock()
		return err
	}
	return nil
}

type Candidates struct{ s *Store }

func (c *Candidates) Create(_ context.Context, candidate *models.CourseCandidate) (*models.CourseCandidate, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if err := c.s.fail("candidates.Create"); err != nil {
		return nil, err
	}
	if candidate.ID == "" {
		candidate.ID = uuid.New().String()
	}
	candidate.IsReviewed = false
	candidate.IsApproved = false
	candidate.CreatedAt = c.s.tick()
	candidate.UpdatedAt = candidate.CreatedAt
	c.s.candidates[candidate.ID] = *candidate
	return candidate, nil
}

func (c *Candidates) Get(_ context.Context, id string) (*models.CourseCandidate, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if err := c.s.fail("candidates.Get"); err != nil {
		return nil, err
	}
	candidate, ok := c.s.candidates[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("course candidate %s not found", id))
	}
	return &candidate, nil
}

func (c *Candidates) GetByHash(_ context.Context, hash string, excludeID string) (*models.CourseCandidate, error) {
	return c.first("candidates.GetByHash", excludeID, func(candidate models.CourseCandidate) bool {
		return candidate.HashIdentifier == hash
	})
}

func (c *Candidates) GetByURL(_ context.Context, url string, excludeID string) (*models.CourseCandidate, error) {
	return c.first("candidates.GetByURL", excludeID, func(candidate models.CourseCandidate) bool {
		return equals(candidate.EmbedURL, url) || equals(candidate.ExternalLink, url) || equals(candidate.VideoURL, url)
	})
}

func (c *Candidates) SearchTitle(_ context.Context, fragment string, excludeID string, limit int) ([]models.CourseCandidate, error) {
	matches, err := c.list("candidates.SearchTitle", true, func(candidate models.CourseCandidate) bool {
		return candidate.ID != excludeID && containsFold(candidate.Title, fragment)
	})
	if err != nil {
		return nil, err
	}
	return truncate(matches, limit), nil
}

func (c *Candidates) ListPending(_ context.Context, limit int) ([]models.CourseCandidate, error) {
	matches, err := c.list("candidates.ListPending", false, func(candidate models.CourseCandidate) bool {
		return !candidate.IsReviewed
	})
	if err != nil {
		return nil, err
	}
	return truncate(matches, limit), nil
}

func (c *Candidates) ListBySource(_ context.Context, source string, limit int) ([]models.CourseCandidate, error) {
	matches, err := c.list("candidates.ListBySource", false, func(candidate models.CourseCandidate) bool {
		return strings.ToLower(strings.TrimSpace(candidate.ScraperSource)) == source
	})
	if err != nil {
		return nil, err
	}
	return truncate(matches, limit), nil
}

func (c *Candidates) MarkApproved(_ context.Context, id string, publishedCourseID string, reviewer *string) error {
	return c.transition("candidates.MarkApproved", id, func(candidate *models.CourseCandidate) {
		candidate.IsApproved = true
		candidate.PublishedCourseID = &publishedCourseID
		candidate.ReviewedBy = reviewer
	})
}

func (c *Candidates) MarkRejected(_ context.Context, id string, reason string, reviewer *string) error {
	return c.transition("candidates.MarkRejected", id, func(candidate *models.CourseCandidate) {
		candidate.IsApproved = false
		candidate.ReviewNotes = &reason
		candidate.ReviewedBy = reviewer
	})
}

func (c *Candidates) UpdateDuplicate(_ context.Context, id string, result models.DuplicateResult) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if err := c.s.fail("candidates.UpdateDuplicate"); err != nil {
		return err
	}
	candidate, ok := c.s.candidates[id]
	if !ok || candidate.IsReviewed {
		return httperror.NewHTTPErrorf(http.StatusConflict, "course candidate %s is already reviewed", id)
	}
	candidate.ApplyDuplicate(result)
	c.s.candidates[id] = candidate
	return nil
}

func (c *Candidates) transition(op, id string, apply func(*models.CourseCandidate)) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if err := c.s.fail(op); err != nil {
		return err
	}
	candidate, ok := c.s.candidates[id]
	if !ok || candidate.IsReviewed {
		return httperror.NewHTTPErrorf(http.StatusConflict, "course candidate %s is already reviewed", id)
	}
	now := c.s.tick()
	candidate.IsReviewed = true
	candidate.ReviewedAt = &now
	candidate.UpdatedAt = now
	apply(&candidate)
	c.s.candidates[id] = candidate
	return nil
}

func (c *Candidates) first(op, excludeID string, match func(models.CourseCandidate) bool) (*models.CourseCandidate, error) {
	matches, err := c.list(op, true, func(candidate models.CourseCandidate) bool {
		return candidate.ID != excludeID && match(candidate)
	})
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return &matches[0], nil
}

func (c *Candidates) list(op string, oldestFirst bool, match func(models.CourseCandidate) bool) ([]models.CourseCandidate, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if err := c.s.fail(op); err != nil {
		return nil, err
	}
	matches := []models.CourseCandidate{}
	for _, candidate := range c.s.candidates {
		if match(candidate) {
			matches = append(matches, candidate)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if oldestFirst {
			return matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches, nil
}

type Catalog struct{ s *Store }

func (c *Catalog) Create(_ context.Context, course *models.PublishedCourse) (*models.PublishedCourse, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if err := c.s.fail("catalog.Create"); err != nil {
		return nil, err
	}
	if course.ID == "" {
		course.ID = uuid.New().String()
	}
	course.CreatedAt = c.s.tick()
	course.UpdatedAt = course.CreatedAt
	c.s.courses[course.ID] = *course
	return course, nil
}

func (c *Catalog) Get(_ context.Context, id string) (*models.PublishedCourse, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if err := c.s.fail("catalog.Get"); err != nil {
		return nil, err
	}
	course, ok := c.s.courses[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("published course %s not found", id))
	}
	return &course, nil
}

func (c *Catalog) GetByHash(_ context.Context, hash string) (*models.PublishedCourse, error) {
	return c.first("catalog.GetByHash", func(course models.PublishedCourse) bool {
		return equals(course.HashIdentifier, hash)
	})
}

func (c *Catalog) GetByURL(_ context.Context, url string) (*models.PublishedCourse, error) {
	return c.first("catalog.GetByURL", func(course models.PublishedCourse) bool {
		return equals(course.SourceURL, url) || equals(course.EmbedURL, url) || equals(course.ExternalLink, url) || equals(course.VideoURL, url)
	})
}

func (c *Catalog) SearchTitle(_ context.Context, fragment string, limit int) ([]models.PublishedCourse, error) {
	matches, err := c.list("catalog.SearchTitle", func(course models.PublishedCourse) bool {
		return containsFold(course.Title, fragment)
	})
	if err != nil {
		return nil, err
	}
	return truncate(matches, limit), nil
}

func (c *Catalog) TouchUpdatedAt(_ context.Context, id string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if err := c.s.fail("catalog.TouchUpdatedAt"); err != nil {
		return err
	}
	course, ok := c.s.courses[id]
	if !ok {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "published course %s not found", id)
	}
	course.UpdatedAt = c.s.tick()
	c.s.courses[id] = course
	return nil
}

func (c *Catalog) first(op string, match func(models.PublishedCourse) bool) (*models.PublishedCourse, error) {
	matches, err := c.list(op, match)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return &matches[0], nil
}

func (c *Catalog) list(op string, match func(models.PublishedCourse) bool) ([]models.PublishedCourse, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if err := c.s.fail(op); err != nil {
		return nil, err
	}
	matches := []models.PublishedCourse{}
	for _, course := range c.s.courses {
		if match(course) {
			matches = append(matches, course)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	return matches, nil
}

type Progress struct{ s *Store }

func (p *Progress) CountActiveSince(_ context.Context, courseID string, since time.Time) (int, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if err := p.s.fail("progress.CountActiveSince"); err != nil {
		return 0, err
	}
	count := 0
	for _, progress := range p.s.progress {
		if progress.CourseID == courseID && progress.Status == models.ProgressStatusInProgress && progress.UpdatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

type Activity struct{ s *Store }

func (a *Activity) Record(_ context.Context, functionName string, results models.ActivityResults) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if err := a.s.fail("activity.Record"); err != nil {
		return err
	}
	a.s.activity = append(a.s.activity, ActivityEntry{FunctionName: functionName, Results: results})
	return nil
}

func equals(value *string, target string) bool {
	return value != nil && *value == target
}

func containsFold(s, fragment string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(fragment))
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
