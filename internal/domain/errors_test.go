package domain_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/gopost/internal/domain"
)

func TestValidationErrorAggregatesAllMissing(t *testing.T) {
	err := &domain.ValidationError{
		Missing: []string{"api_key:cerebras", "facebook_page_access_token", "catboxHash"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "api_key:cerebras")
	assert.Contains(t, msg, "facebook_page_access_token")
	assert.Contains(t, msg, "catboxHash")
}

func TestStageErrorUnwraps(t *testing.T) {
	cause := errors.New("render failed")
	err := &domain.StageError{Stage: "video_render_ffmpeg", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "video_render_ffmpeg")
}

func TestNormalizeErrorIncludesUpstreamDetail(t *testing.T) {
	upstream := &domain.UpstreamError{Status: 429, Body: `{"error":"rate limited"}`, Op: "cerebras chat completion"}
	wrapped := fmt.Errorf("generate script: %w", upstream)

	msg := domain.NormalizeError(wrapped)
	assert.Contains(t, msg, "status=429")
	assert.Contains(t, msg, "rate limited")
}

func TestNormalizeErrorTruncatesLargeBodies(t *testing.T) {
	upstream := &domain.UpstreamError{Status: 500, Body: strings.Repeat("x", 10_000), Op: "upload"}

	msg := domain.NormalizeError(upstream)
	assert.Less(t, len(msg), 1000)
}

func TestNormalizeErrorPlain(t *testing.T) {
	assert.Equal(t, "boom", domain.NormalizeError(errors.New("boom")))
	assert.Equal(t, "", domain.NormalizeError(nil))
}

func TestNextDailyOccurrence(t *testing.T) {
	sched := domain.Schedule{ScheduledAt: mustParse(t, "2026-08-01T09:00:00Z")}

	next := sched.NextDailyOccurrence(mustParse(t, "2026-08-03T10:00:00Z"))
	assert.Equal(t, mustParse(t, "2026-08-04T09:00:00Z"), next)

	// Already in the future: unchanged.
	future := domain.Schedule{ScheduledAt: mustParse(t, "2026-09-01T09:00:00Z")}
	assert.Equal(t, future.ScheduledAt, future.NextDailyOccurrence(mustParse(t, "2026-08-03T10:00:00Z")))
}
