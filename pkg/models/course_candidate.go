package models

import (
	"time"
)

// DuplicateKind names the table DuplicateOf points into.
type DuplicateKind string

const (
	DuplicateKindCourse    DuplicateKind = "course"
	DuplicateKindCandidate DuplicateKind = "candidate"
)

type DuplicateMethod string

const (
	DuplicateMethodHash  DuplicateMethod = "hash"
	DuplicateMethodURL   DuplicateMethod = "url"
	DuplicateMethodTitle DuplicateMethod = "title"
)

// CourseCandidate is a scraped submission awaiting moderation. Once
// IsReviewed is set the row is terminal.
type CourseCandidate struct {
	ID string `json:"id" db:"id"`
	CourseContent
	ScraperSource  string `json:"scraper_source" db:"scraper_source"`
	HashIdentifier string `json:"hash_identifier" db:"hash_identifier"`

	IsReviewed  bool       `json:"is_reviewed" db:"is_reviewed"`
	IsApproved  bool       `json:"is_approved" db:"is_approved"`
	ReviewNotes *string    `json:"review_notes,omitempty" db:"review_notes"`
	ReviewedBy  *string    `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`

	IsDuplicate         bool             `json:"is_duplicate" db:"is_duplicate"`
	DuplicateOf         *string          `json:"duplicate_of,omitempty" db:"duplicate_of"`
	DuplicateKind       *DuplicateKind   `json:"duplicate_kind,omitempty" db:"duplicate_kind"`
	DuplicateMethod     *DuplicateMethod `json:"duplicate_method,omitempty" db:"duplicate_method"`
	DuplicateConfidence int              `json:"duplicate_confidence" db:"duplicate_confidence"`

	PublishedCourseID *string   `json:"published_course_id,omitempty" db:"published_course_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// ApplyDuplicate copies a detector result onto the candidate.
func (c *CourseCandidate) ApplyDuplicate(result DuplicateResult) {
	c.IsDuplicate = result.IsDuplicate
	c.DuplicateConfidence = result.Confidence
	if !result.IsDuplicate {
		c.DuplicateOf = nil
		c.DuplicateKind = nil
		c.DuplicateMethod = nil
		return
	}
	existingID := result.ExistingID
	kind := result.ExistingKind
	method := result.Method
	c.DuplicateOf = &existingID
	c.DuplicateKind = &kind
	c.DuplicateMethod = &method
}

// DuplicateResult is the outcome of a duplicate lookup. The zero value means
// no match.
type DuplicateResult struct {
	IsDuplicate  bool            `json:"is_duplicate"`
	ExistingID   string          `json:"existing_id,omitempty"`
	ExistingKind DuplicateKind   `json:"existing_kind,omitempty"`
	Method       DuplicateMethod `json:"method,omitempty"`
	Confidence   int             `json:"confidence"`
}

// ScrapedCourse is the payload a scraper submits.
type ScrapedCourse struct {
	Title           string   `json:"title" validate:"required"`
	Summary         string   `json:"summary,omitempty"`
	Category        string   `json:"category,omitempty"`
	Level           string   `json:"level,omitempty"`
	HostingType     string   `json:"hosting_type,omitempty" validate:"omitempty,oneof=hosted embedded external"`
	VideoURL        string   `json:"video_url,omitempty" validate:"omitempty,url"`
	EmbedURL        string   `json:"embed_url,omitempty" validate:"omitempty,url"`
	ExternalLink    string   `json:"external_link,omitempty" validate:"omitempty,url"`
	ImageURL        string   `json:"image_url,omitempty" validate:"omitempty,url"`
	ScraperSource   string   `json:"scraper_source" validate:"required"`
	Instructor      string   `json:"instructor,omitempty"`
	DurationMinutes int      `json:"duration_minutes,omitempty" validate:"gte=0"`
	Tags            []string `json:"tags,omitempty"`
}

// SourceURL prefers the external link over the embed URL.
func (s ScrapedCourse) SourceURL() string {
	if s.ExternalLink != "" {
		return s.ExternalLink
	}
	return s.EmbedURL
}

// Content converts the payload into stored content, leaving blank fields unset.
func (s ScrapedCourse) Content() CourseContent {
	content := CourseContent{
		Title:        s.Title,
		Summary:      optional(s.Summary),
		Category:     optional(s.Category),
		Level:        optional(s.Level),
		VideoURL:     optional(s.VideoURL),
		EmbedURL:     optional(s.EmbedURL),
		ExternalLink: optional(s.ExternalLink),
		ImageURL:     optional(s.ImageURL),
		Instructor:   optional(s.Instructor),
		Tags:         pqTags(s.Tags),
	}
	if s.HostingType != "" {
		hostingType := HostingType(s.HostingType)
		content.HostingType = &hostingType
	}
	if s.DurationMinutes > 0 {
		duration := s.DurationMinutes
		content.DurationMinutes = &duration
	}
	return content
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func pqTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
