// Package scheduler polls the schedule lists on a fixed interval and
// dispatches due jobs to the pipeline, one at a time.
package scheduler

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/metrics"
	"github.com/jonesrussell/gopost/internal/store"
)

// DefaultInterval is the poll cadence when none is configured.
const DefaultInterval = 15 * time.Second

// JobRunner executes one schedule to a terminal status.
type JobRunner interface {
	Run(ctx context.Context, sched domain.Schedule) error
}

// Scheduler drives the poll loop. Exactly one tick body runs at a time:
// a tick arriving while a previous one is still dispatching is skipped
// whole, never interleaved.
type Scheduler struct {
	store    *store.Store
	runner   JobRunner
	logger   logger.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	now      func() time.Time

	running atomic.Bool
	refresh chan struct{}
}

// New creates a Scheduler. A non-positive interval falls back to
// DefaultInterval.
func New(s *store.Store, runner JobRunner, m *metrics.Metrics, log logger.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		store:    s,
		runner:   runner,
		logger:   log,
		metrics:  m,
		interval: interval,
		now:      time.Now,
		refresh:  make(chan struct{}, 1),
	}
}

// RequestRefresh asks for an immediate tick without waiting out the
// interval. Used by the API after schedule mutations. Never blocks; a
// refresh already queued is enough.
func (s *Scheduler) RequestRefresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

// Start runs the poll loop until ctx is cancelled. The first tick fires
// immediately so a restart picks up overdue jobs without waiting out an
// interval.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started", logger.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		case <-s.refresh:
			s.tick(ctx)
		}
	}
}

// tick loads both schedule lists and dispatches every due pending job in
// scheduled order. Reentrancy is guarded: a tick that finds a previous
// tick still running skips entirely.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.TicksSkipped.Inc()
		s.logger.Debug("tick skipped; previous tick still running")
		return
	}
	defer s.running.Store(false)

	s.metrics.TicksTotal.Inc()

	pending, err := s.loadPending(ctx)
	if err != nil {
		s.logger.Error("failed to load schedules", logger.Error(err))
		return
	}

	now := s.now()
	due, upcoming := partitionDue(pending, now)

	for _, sched := range due {
		if ctx.Err() != nil {
			return
		}
		s.logger.Info("dispatching job",
			logger.String("schedule_id", sched.ID),
			logger.String("kind", string(sched.Kind)),
			logger.String("niche", sched.Niche))

		if err := s.runner.Run(ctx, sched); err != nil {
			s.logger.Error("job failed",
				logger.String("schedule_id", sched.ID),
				logger.Error(err))
		}
	}

	if len(due) == 0 && len(upcoming) > 0 {
		s.logger.Info("next job scheduled",
			logger.String("schedule_id", upcoming[0].ID),
			logger.Duration("in", upcoming[0].ScheduledAt.Sub(now).Round(time.Second)))
	}
}

// loadPending returns the pending schedules of both kinds sorted by
// scheduled time, earliest first. Sorting is stable so same-instant
// jobs keep their stored order.
func (s *Scheduler) loadPending(ctx context.Context) ([]domain.Schedule, error) {
	var pending []domain.Schedule

	for _, kind := range []domain.ContentKind{domain.KindVideo, domain.KindPost} {
		schedules, err := store.Read[[]domain.Schedule](ctx, s.store, store.SchedulesKey(kind))
		if err != nil {
			return nil, err
		}
		for _, sched := range schedules {
			if sched.Status == domain.StatusPending {
				pending = append(pending, sched)
			}
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].ScheduledAt.Before(pending[j].ScheduledAt)
	})
	return pending, nil
}

// partitionDue splits sorted schedules into due-now and upcoming.
func partitionDue(pending []domain.Schedule, now time.Time) (due, upcoming []domain.Schedule) {
	for i, sched := range pending {
		if sched.ScheduledAt.After(now) {
			return pending[:i], pending[i:]
		}
	}
	return pending, nil
}
