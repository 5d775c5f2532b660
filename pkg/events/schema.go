package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// EventType defines the type of event
type EventType string

const (
	EventTypeCoursePublished   EventType = "course.published"
	EventTypeCourseMerged      EventType = "course.merged"
	EventTypeCandidateRejected EventType = "candidate.rejected"
)

// CoursePublishedData is the payload of course.published
type CoursePublishedData struct {
	Title          string  `json:"title"`
	SourcePlatform *string `json:"source_platform,omitempty"`
	SourceURL      *string `json:"source_url,omitempty"`
	HashIdentifier *string `json:"hash_identifier,omitempty"`
}

// CourseMergedData is the payload of course.merged
type CourseMergedData struct {
	Title               string                  `json:"title"`
	ScraperSource       string                  `json:"scraper_source"`
	DuplicateMethod     *models.DuplicateMethod `json:"duplicate_method,omitempty"`
	DuplicateConfidence int                     `json:"duplicate_confidence"`
}

// CandidateRejectedData is the payload of candidate.rejected
type CandidateRejectedData struct {
	Title         string  `json:"title"`
	ScraperSource string  `json:"scraper_source"`
	Reason        *string `json:"reason,omitempty"`
}

// newEvent fills the fields every course event carries.
func newEvent(eventType EventType, courseID string, candidate *models.CourseCandidate) *kafka.CourseEvent {
	event := &kafka.CourseEvent{
		EventType:     string(eventType),
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		CourseID:      courseID,
		CandidateID:   candidate.ID,
		Timestamp:     time.Now().UTC(),
	}
	if candidate.ReviewedBy != nil {
		event.ReviewedBy = *candidate.ReviewedBy
	}
	return event
}
