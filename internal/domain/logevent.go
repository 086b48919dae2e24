package domain

import "time"

// EventKind classifies a log event's origin.
type EventKind string

const (
	EventVideo  EventKind = "video"
	EventPost   EventKind = "post"
	EventSystem EventKind = "system"
)

// EventKindFor maps a content kind to its event kind.
func EventKindFor(kind ContentKind) EventKind {
	if kind == KindPost {
		return EventPost
	}
	return EventVideo
}

// Event status values.
const (
	EventSuccess = "success"
	EventError   = "error"
	EventInfo    = "info"
)

// LogEvent is an immutable diagnostic record produced by the stage
// wrapper and the job-level success/failure handlers.
type LogEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      EventKind `json:"type"`
	Niche     string    `json:"niche,omitempty"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
}
