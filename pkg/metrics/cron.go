package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric exported by the storefront processes.
const Namespace = "storefront"

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// CronJobMetrics tracks scheduled job runs and the worker lock. A nil
// *CronJobMetrics is valid and records nothing.
type CronJobMetrics struct {
	duration    *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	lock        *prometheus.CounterVec
}

// NewCronJobMetrics registers the cron metrics on reg. A nil reg yields
// metrics that are never exported.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return nil
	}
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Wall time of cron job runs.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 60, 300, 900},
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Cron job runs by result.",
		}, []string{"job", "result"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "cron",
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run of each job.",
		}, []string{"job"}),
		lock: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "cron",
			Name:      "lock_events_total",
			Help:      "Cycles skipped because another worker held the lock, and locks lost mid-run.",
		}, []string{"event"}),
	}
	reg.MustRegister(m.duration, m.runs, m.lastSuccess, m.lock)
	return m
}

// ObserveRun records one finished run of job. A nil err counts as success.
func (c *CronJobMetrics) ObserveRun(job string, took time.Duration, err error, finished time.Time) {
	if c == nil {
		return
	}
	job = labelValue(job)
	c.duration.WithLabelValues(job).Observe(took.Seconds())
	if err != nil {
		c.runs.WithLabelValues(job, resultFailure).Inc()
		return
	}
	c.runs.WithLabelValues(job, resultSuccess).Inc()
	c.lastSuccess.WithLabelValues(job).Set(float64(finished.Unix()))
}

// LockSkipped counts a cycle that found the lock held elsewhere.
func (c *CronJobMetrics) LockSkipped() {
	if c == nil {
		return
	}
	c.lock.WithLabelValues("skipped").Inc()
}

// LockLost counts a lock that expired or was taken while jobs were running.
func (c *CronJobMetrics) LockLost() {
	if c == nil {
		return
	}
	c.lock.WithLabelValues("lost").Inc()
}

// labelValue keeps label values non-empty.
func labelValue(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
