package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/metrics"
	"github.com/jonesrussell/gopost/internal/store"
)

type recordingRunner struct {
	mu      sync.Mutex
	ran     []string
	block   chan struct{}
	started chan struct{}
}

func (r *recordingRunner) Run(_ context.Context, sched domain.Schedule) error {
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, sched.ID)
	return nil
}

func (r *recordingRunner) ranIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

type recordingLogger struct {
	mu   sync.Mutex
	info []string
}

func (l *recordingLogger) Debug(string, ...logger.Field) {}

func (l *recordingLogger) Info(msg string, _ ...logger.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.info = append(l.info, msg)
}

func (l *recordingLogger) Warn(string, ...logger.Field)  {}
func (l *recordingLogger) Error(string, ...logger.Field) {}

func (l *recordingLogger) With(...logger.Field) logger.Logger { return l }

func (l *recordingLogger) Sync() error { return nil }

func (l *recordingLogger) infoMessages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.info...)
}

func newTestScheduler(t *testing.T, runner JobRunner) (*Scheduler, *store.Store) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	st := store.New(client)

	return New(st, runner, metrics.NewNop(), logger.NewNopLogger(), time.Minute), st
}

func writeSchedules(t *testing.T, st *store.Store, kind domain.ContentKind, schedules ...domain.Schedule) {
	t.Helper()
	require.NoError(t, store.Write(context.Background(), st, store.SchedulesKey(kind), schedules))
}

func TestTickDispatchesDueJobsInScheduledOrder(t *testing.T) {
	runner := &recordingRunner{}
	s, st := newTestScheduler(t, runner)

	now := time.Now()
	s.now = func() time.Time { return now }

	writeSchedules(t, st, domain.KindVideo,
		domain.Schedule{ID: "late", Status: domain.StatusPending, ScheduledAt: now.Add(-time.Minute)},
		domain.Schedule{ID: "early", Status: domain.StatusPending, ScheduledAt: now.Add(-time.Hour)},
		domain.Schedule{ID: "future", Status: domain.StatusPending, ScheduledAt: now.Add(time.Hour)},
	)
	writeSchedules(t, st, domain.KindPost,
		domain.Schedule{ID: "middle", Kind: domain.KindPost, Status: domain.StatusPending, ScheduledAt: now.Add(-30 * time.Minute)},
	)

	s.tick(context.Background())

	assert.Equal(t, []string{"early", "middle", "late"}, runner.ranIDs())
}

func TestTickIgnoresNonPendingSchedules(t *testing.T) {
	runner := &recordingRunner{}
	s, st := newTestScheduler(t, runner)

	now := time.Now()
	s.now = func() time.Time { return now }

	writeSchedules(t, st, domain.KindVideo,
		domain.Schedule{ID: "posted", Status: domain.StatusPosted, ScheduledAt: now.Add(-time.Hour)},
		domain.Schedule{ID: "failed", Status: domain.StatusFailed, ScheduledAt: now.Add(-time.Hour)},
		domain.Schedule{ID: "generating", Status: domain.StatusGenerating, ScheduledAt: now.Add(-time.Hour)},
	)

	s.tick(context.Background())

	assert.Empty(t, runner.ranIDs())
}

func TestTickWhileRunningIsSkippedWhole(t *testing.T) {
	runner := &recordingRunner{
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	s, st := newTestScheduler(t, runner)

	now := time.Now()
	s.now = func() time.Time { return now }

	writeSchedules(t, st, domain.KindVideo,
		domain.Schedule{ID: "slow", Status: domain.StatusPending, ScheduledAt: now.Add(-time.Hour)},
		domain.Schedule{ID: "also-due", Status: domain.StatusPending, ScheduledAt: now.Add(-time.Minute)},
	)

	done := make(chan struct{})
	go func() {
		s.tick(context.Background())
		close(done)
	}()
	<-runner.started

	// overlapping tick must not dispatch anything, not even also-due
	s.tick(context.Background())
	assert.Empty(t, runner.ranIDs())

	close(runner.block)
	<-done

	assert.Equal(t, []string{"slow", "also-due"}, runner.ranIDs())
}

func TestTickLogsNextJobOnlyWhenIdle(t *testing.T) {
	runner := &recordingRunner{}
	s, st := newTestScheduler(t, runner)
	log := &recordingLogger{}
	s.logger = log

	now := time.Now()
	s.now = func() time.Time { return now }

	writeSchedules(t, st, domain.KindVideo,
		domain.Schedule{ID: "due", Status: domain.StatusPending, ScheduledAt: now.Add(-time.Minute)},
		domain.Schedule{ID: "future", Status: domain.StatusPending, ScheduledAt: now.Add(time.Hour)},
	)

	s.tick(context.Background())
	require.Equal(t, []string{"due"}, runner.ranIDs())
	assert.NotContains(t, log.infoMessages(), "next job scheduled")

	// with nothing due the upcoming job is announced
	writeSchedules(t, st, domain.KindVideo,
		domain.Schedule{ID: "future", Status: domain.StatusPending, ScheduledAt: now.Add(time.Hour)},
	)
	s.tick(context.Background())
	assert.Contains(t, log.infoMessages(), "next job scheduled")
}

func TestRequestRefreshNeverBlocks(t *testing.T) {
	s, _ := newTestScheduler(t, &recordingRunner{})

	for i := 0; i < 10; i++ {
		s.RequestRefresh()
	}
}

func TestStartRunsImmediateFirstTickAndStopsOnCancel(t *testing.T) {
	runner := &recordingRunner{}
	s, st := newTestScheduler(t, runner)

	now := time.Now()
	s.now = func() time.Time { return now }

	writeSchedules(t, st, domain.KindVideo,
		domain.Schedule{ID: "due", Status: domain.StatusPending, ScheduledAt: now.Add(-time.Minute)},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		ids := runner.ranIDs()
		return len(ids) == 1 && ids[0] == "due"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}

func TestRefreshTriggersTickBeforeInterval(t *testing.T) {
	runner := &recordingRunner{}
	s, st := newTestScheduler(t, runner)

	now := time.Now()
	s.now = func() time.Time { return now }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	// first immediate tick sees nothing; then a due job appears
	time.Sleep(50 * time.Millisecond)
	writeSchedules(t, st, domain.KindVideo,
		domain.Schedule{ID: "added", Status: domain.StatusPending, ScheduledAt: now.Add(-time.Minute)},
	)
	s.RequestRefresh()

	assert.Eventually(t, func() bool {
		ids := runner.ranIDs()
		return len(ids) == 1 && ids[0] == "added"
	}, 2*time.Second, 10*time.Millisecond)
}
