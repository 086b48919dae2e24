// Package keys manages provider credentials: listing, usage tracking,
// and rotation-based failover across the active keys of a provider.
package keys

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/metrics"
	"github.com/jonesrussell/gopost/internal/store"
)

// Service owns the per-provider rotation offsets. Offsets are guarded
// by a mutex so a manual pipeline run racing a scheduler tick cannot
// corrupt rotation state.
type Service struct {
	store   *store.Store
	logger  logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.Mutex
	offsets map[domain.Provider]int
}

// NewService creates a credential service backed by the state store.
func NewService(s *store.Store, m *metrics.Metrics, log logger.Logger) *Service {
	return &Service{
		store:   s,
		logger:  log,
		metrics: m,
		now:     time.Now,
		offsets: make(map[domain.Provider]int),
	}
}

// List returns all credentials registered for a provider, newest first.
func (s *Service) List(ctx context.Context, provider domain.Provider) ([]domain.Credential, error) {
	return store.Read[[]domain.Credential](ctx, s.store, store.CredentialsKey(provider))
}

// Active returns the provider's credentials with status active,
// preserving stored order.
func (s *Service) Active(ctx context.Context, provider domain.Provider) ([]domain.Credential, error) {
	all, err := s.List(ctx, provider)
	if err != nil {
		return nil, err
	}

	active := make([]domain.Credential, 0, len(all))
	for _, cred := range all {
		if cred.Active() {
			active = append(active, cred)
		}
	}
	return active, nil
}

// nextOffset returns the provider's current rotation offset modulo the
// active count and advances it by one for the next call.
func (s *Service) nextOffset(provider domain.Provider, activeCount int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset := s.offsets[provider] % activeCount
	s.offsets[provider] = (s.offsets[provider] + 1) % activeCount
	return offset
}

// trackUsage records the outcome of one credential attempt. Counters
// are monotonic; only failover attempts ever touch them.
func (s *Service) trackUsage(ctx context.Context, provider domain.Provider, id string, success bool) {
	used := s.now().UTC()

	err := store.Update(ctx, s.store, store.CredentialsKey(provider), func(creds []domain.Credential) ([]domain.Credential, error) {
		for i := range creds {
			if creds[i].ID != id {
				continue
			}
			if success {
				creds[i].SuccessCount++
			} else {
				creds[i].FailCount++
			}
			creds[i].LastUsed = &used
			break
		}
		return creds, nil
	})
	if err != nil {
		s.logger.Warn("failed to record credential usage",
			logger.String("provider", string(provider)),
			logger.String("credential_id", id),
			logger.Error(err),
		)
	}
}

// rotate returns creds shifted left by offset, wrapping around.
func rotate(creds []domain.Credential, offset int) []domain.Credential {
	if len(creds) == 0 {
		return creds
	}
	idx := offset % len(creds)
	rotated := make([]domain.Credential, 0, len(creds))
	rotated = append(rotated, creds[idx:]...)
	rotated = append(rotated, creds[:idx]...)
	return rotated
}

// WithFailover executes op against the provider's active credentials in
// rotated order, returning the first successful result. Every attempt
// updates the credential's usage counters. If all credentials fail, the
// last error is returned wrapped as a ProviderError. The operation's
// own timeout, if any, is the only bound on attempt duration.
func WithFailover[T any](ctx context.Context, s *Service, provider domain.Provider, op func(context.Context, domain.Credential) (T, error)) (T, error) {
	var zero T

	active, err := s.Active(ctx, provider)
	if err != nil {
		return zero, fmt.Errorf("list active %s keys: %w", provider, err)
	}
	if len(active) == 0 {
		return zero, &domain.ProviderError{
			Provider: provider,
			Err:      fmt.Errorf("no active keys"),
		}
	}

	ordered := rotate(active, s.nextOffset(provider, len(active)))

	var lastErr error
	for _, cred := range ordered {
		result, opErr := op(ctx, cred)
		if opErr == nil {
			s.metrics.FailoverAttempts.WithLabelValues(string(provider), "ok").Inc()
			s.trackUsage(ctx, provider, cred.ID, true)
			return result, nil
		}

		lastErr = opErr
		s.metrics.FailoverAttempts.WithLabelValues(string(provider), "error").Inc()
		s.trackUsage(ctx, provider, cred.ID, false)
		s.logger.Warn("credential attempt failed",
			logger.String("provider", string(provider)),
			logger.String("credential", cred.Name),
			logger.Error(opErr),
		)
	}

	return zero, &domain.ProviderError{Provider: provider, Err: lastErr}
}
