// Package domain defines the core types shared by the gopost services:
// schedules, credentials, pages, scripts, log events and the error
// taxonomy used by the pipeline.
package domain

import "time"

// ContentKind distinguishes the two schedulable content types.
type ContentKind string

const (
	KindVideo ContentKind = "video"
	KindPost  ContentKind = "post"
)

// Valid reports whether the kind is one of the known content kinds.
func (k ContentKind) Valid() bool {
	return k == KindVideo || k == KindPost
}

// Status is the schedule state machine:
// pending -> generating -> {posted | failed}.
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusPosted     Status = "posted"
	StatusFailed     Status = "failed"
)

// Niches is the fixed set of content categories topics are discovered for.
var Niches = []string{
	"Romance & Pig-Butchering Crypto Scams",
	"AI-Driven & Deepfake Crypto Scams",
	"Crypto Scam Statistics & Big Numbers",
}

// ValidNiche reports whether niche is one of the supported categories.
func ValidNiche(niche string) bool {
	for _, n := range Niches {
		if n == niche {
			return true
		}
	}
	return false
}

// Schedule is one recurring or one-off content job. It is created
// pending by the API layer and mutated only by the pipeline.
type Schedule struct {
	ID             string      `json:"id"`
	Kind           ContentKind `json:"type"`
	Niche          string      `json:"niche"`
	PageID         string      `json:"pageId"`
	ScheduledAt    time.Time   `json:"scheduledAt"`
	IsDaily        bool        `json:"isDaily"`
	Status         Status      `json:"status"`
	CreatedAt      time.Time   `json:"createdAt"`
	StartedAt      *time.Time  `json:"startedAt,omitempty"`
	PublishedAt    *time.Time  `json:"publishedAt,omitempty"`
	FailedAt       *time.Time  `json:"failedAt,omitempty"`
	ErrorMessage   string      `json:"errorMessage,omitempty"`
	LastTopic      string      `json:"lastTopic,omitempty"`
	GeneratedTitle string      `json:"generatedTitle,omitempty"`
	PageName       string      `json:"pageName,omitempty"`
}

// NextDailyOccurrence returns the schedule's scheduled time advanced by
// whole days until it is strictly after now. Calendar-day arithmetic is
// used so the wall-clock time survives DST transitions.
func (s Schedule) NextDailyOccurrence(now time.Time) time.Time {
	next := s.ScheduledAt
	for !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// PublishedItem records one piece of published content for history views.
type PublishedItem struct {
	ID          string      `json:"id"`
	Kind        ContentKind `json:"type"`
	Title       string      `json:"title"`
	Niche       string      `json:"niche"`
	PostedAt    time.Time   `json:"postedAt"`
	Status      string      `json:"status"`
	Thumbnail   string      `json:"thumbnail,omitempty"`
	Caption     string      `json:"caption"`
	Hashtags    string      `json:"hashtags"`
	FacebookURL string      `json:"facebookUrl"`
}

// Page is a connected Facebook page with its publishing token.
type Page struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	AccessToken string    `json:"accessToken"`
	Status      string    `json:"status"`
	LastChecked time.Time `json:"lastChecked"`
}

// Settings holds operator-editable configuration persisted in the store.
type Settings struct {
	CatboxHash         string `json:"catboxHash,omitempty"`
	FacebookCommentURL string `json:"facebookCommentUrl,omitempty"`
}
