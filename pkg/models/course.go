package models

import (
	"time"

	"github.com/lib/pq"
)

type HostingType string

const (
	HostingTypeHosted   HostingType = "hosted"
	HostingTypeEmbedded HostingType = "embedded"
	HostingTypeExternal HostingType = "external"
)

// CourseContent holds the fields copied from a candidate onto its catalog entry.
type CourseContent struct {
	Title           string         `json:"title" db:"title"`
	Summary         *string        `json:"summary,omitempty" db:"summary"`
	Category        *string        `json:"category,omitempty" db:"category"`
	Level           *string        `json:"level,omitempty" db:"level"`
	HostingType     *HostingType   `json:"hosting_type,omitempty" db:"hosting_type"`
	VideoURL        *string        `json:"video_url,omitempty" db:"video_url"`
	EmbedURL        *string        `json:"embed_url,omitempty" db:"embed_url"`
	ExternalLink    *string        `json:"external_link,omitempty" db:"external_link"`
	ImageURL        *string        `json:"image_url,omitempty" db:"image_url"`
	Instructor      *string        `json:"instructor,omitempty" db:"instructor"`
	DurationMinutes *int           `json:"duration_minutes,omitempty" db:"duration_minutes"`
	Tags            pq.StringArray `json:"tags" db:"tags"`
}

// SourceURL prefers the external link over the embed URL.
func (c CourseContent) SourceURL() *string {
	if c.ExternalLink != nil && *c.ExternalLink != "" {
		return c.ExternalLink
	}
	if c.EmbedURL != nil && *c.EmbedURL != "" {
		return c.EmbedURL
	}
	return nil
}

// PublishedCourse is a user-visible catalog entry.
type PublishedCourse struct {
	ID string `json:"id" db:"id"`
	CourseContent
	IsPublished    bool      `json:"is_published" db:"is_published"`
	SourcePlatform *string   `json:"source_platform,omitempty" db:"source_platform"`
	SourceURL      *string   `json:"source_url,omitempty" db:"source_url"`
	HashIdentifier *string   `json:"hash_identifier,omitempty" db:"hash_identifier"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type ProgressStatus string

const (
	ProgressStatusNotStarted ProgressStatus = "not_started"
	ProgressStatusInProgress ProgressStatus = "in_progress"
	ProgressStatusCompleted  ProgressStatus = "completed"
)

// CourseProgress is a learner's enrollment in a catalog entry. Read-only here.
type CourseProgress struct {
	ID              string         `json:"id" db:"id"`
	UserID          string         `json:"user_id" db:"user_id"`
	CourseID        string         `json:"course_id" db:"course_id"`
	Status          ProgressStatus `json:"status" db:"status"`
	ProgressPercent int            `json:"progress_percent" db:"progress_percent"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}
