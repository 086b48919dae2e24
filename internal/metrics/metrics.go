// Package metrics exposes Prometheus instrumentation for the scheduler
// and pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors tracked by the service. A single
// instance is created at startup and shared by the scheduler, pipeline
// and key rotation layers.
type Metrics struct {
	JobsTotal        *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	FailoverAttempts *prometheus.CounterVec
	TicksTotal       prometheus.Counter
	TicksSkipped     prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gopost",
			Name:      "jobs_total",
			Help:      "Completed pipeline jobs by content kind and terminal status.",
		}, []string{"kind", "status"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gopost",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage durations.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"stage", "outcome"}),
		FailoverAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gopost",
			Name:      "key_failover_attempts_total",
			Help:      "Credential attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gopost",
			Name:      "scheduler_ticks_total",
			Help:      "Scheduler ticks executed.",
		}),
		TicksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gopost",
			Name:      "scheduler_ticks_skipped_total",
			Help:      "Ticks skipped because a previous tick was still running.",
		}),
	}

	reg.MustRegister(
		m.JobsTotal,
		m.StageDuration,
		m.FailoverAttempts,
		m.TicksTotal,
		m.TicksSkipped,
	)
	return m
}

// NewNop returns metrics registered on a throwaway registry, for tests
// and callers that do not scrape.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
