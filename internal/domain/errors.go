package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoUniqueTopic is raised by the pipeline when every discovered
// candidate is a near-duplicate of topic history. The topic filter
// itself treats this as a legitimate empty result, not an error.
var ErrNoUniqueTopic = errors.New("no unique topics found")

// ValidationError aggregates every missing configuration requirement
// detected before a job runs, not just the first.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required configuration: " + strings.Join(e.Missing, ", ")
}

// StageError marks a failure with the pipeline stage it occurred in.
// The wrapped error is re-raised unchanged by the stage wrapper; only
// the job-level handler converts it into a terminal schedule state.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ProviderError reports that every active credential for a provider
// failed, wrapping the last attempt's error.
type ProviderError struct {
	Provider Provider
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// UpstreamError carries the HTTP status and response payload of a
// failed collaborator call so it can be surfaced in diagnostics.
type UpstreamError struct {
	Status int
	Body   string
	Op     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
}

// maxNormalizedBody bounds upstream response bodies in log messages.
const maxNormalizedBody = 512

// NormalizeError renders an error as a human-readable message with the
// upstream status code and response body appended when available.
func NormalizeError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		msg += fmt.Sprintf(" status=%d", upstream.Status)
		if body := strings.TrimSpace(upstream.Body); body != "" {
			if len(body) > maxNormalizedBody {
				body = body[:maxNormalizedBody]
			}
			msg += " response=" + body
		}
	}

	return msg
}
