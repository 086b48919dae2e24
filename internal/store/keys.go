package store

import "github.com/jonesrussell/gopost/internal/domain"

// Key names one keyed JSON document in the state store.
type Key string

const (
	KeySettings        Key = "state:settings"
	KeyPages           Key = "state:facebook_pages"
	KeySchedulesVideo  Key = "state:schedules_video"
	KeySchedulesPost   Key = "state:schedules_post"
	KeyPublishedVideos Key = "state:published_videos"
	KeyPublishedPosts  Key = "state:published_posts"
	KeyTopicHistory    Key = "state:topic_history"
	KeyLogs            Key = "state:logs"
)

// CredentialsKey returns the key holding a provider's credential list.
func CredentialsKey(provider domain.Provider) Key {
	return Key("state:keys:" + string(provider))
}

// SchedulesKey returns the schedule list key for a content kind.
func SchedulesKey(kind domain.ContentKind) Key {
	if kind == domain.KindPost {
		return KeySchedulesPost
	}
	return KeySchedulesVideo
}

// PublishedKey returns the published-content list key for a content kind.
func PublishedKey(kind domain.ContentKind) Key {
	if kind == domain.KindPost {
		return KeyPublishedPosts
	}
	return KeyPublishedVideos
}
