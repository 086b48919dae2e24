// Package events records immutable log events for diagnostics. Events
// are prepended to the store's log list and mirrored to the structured
// logger.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/store"
)

// Recorder writes log events to the state store.
type Recorder struct {
	store  *store.Store
	logger logger.Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder.
func NewRecorder(s *store.Store, log logger.Logger) *Recorder {
	return &Recorder{
		store:  s,
		logger: log,
		now:    time.Now,
	}
}

// Record persists one log event. Persistence failures are logged and
// swallowed: diagnostics must never fail the work they describe.
func (r *Recorder) Record(ctx context.Context, kind domain.EventKind, status, message, niche string) {
	fields := []logger.Field{
		logger.String("kind", string(kind)),
	}
	if niche != "" {
		fields = append(fields, logger.String("niche", niche))
	}

	switch status {
	case domain.EventError:
		r.logger.Error(message, fields...)
	default:
		r.logger.Info(message, fields...)
	}

	event := domain.LogEvent{
		ID:        uuid.NewString(),
		Timestamp: r.now().UTC(),
		Kind:      kind,
		Niche:     niche,
		Status:    status,
		Message:   message,
	}

	if err := store.Append(ctx, r.store, store.KeyLogs, event); err != nil {
		r.logger.Warn("failed to persist log event", logger.Error(err))
	}
}

// Info records an info event.
func (r *Recorder) Info(ctx context.Context, kind domain.EventKind, message, niche string) {
	r.Record(ctx, kind, domain.EventInfo, message, niche)
}

// Success records a success event.
func (r *Recorder) Success(ctx context.Context, kind domain.EventKind, message, niche string) {
	r.Record(ctx, kind, domain.EventSuccess, message, niche)
}

// Error records an error event.
func (r *Recorder) Error(ctx context.Context, kind domain.EventKind, message, niche string) {
	r.Record(ctx, kind, domain.EventError, message, niche)
}
