package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "courtside"

// JobMetrics records runs of scheduled storefront jobs.
type JobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
}

// NewJobMetrics registers the job collectors on reg. A nil registerer yields
// a no-op recorder.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Duration of scheduled jobs in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_runs_total",
		Help:      "Scheduled job runs by result (success, failure, skipped).",
	}, []string{"job", "result"})
	reg.MustRegister(duration, runs)
	return &JobMetrics{duration: duration, runs: runs}
}

// ObserveDuration records how long the named job ran.
func (m *JobMetrics) ObserveDuration(job string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(labelOrUnknown(job)).Observe(d.Seconds())
}

func (m *JobMetrics) IncSuccess(job string) { m.inc(job, "success") }

func (m *JobMetrics) IncFailure(job string) { m.inc(job, "failure") }

// IncSkipped counts ticks where another worker held the job lock.
func (m *JobMetrics) IncSkipped(job string) { m.inc(job, "skipped") }

func (m *JobMetrics) inc(job, result string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(labelOrUnknown(job), result).Inc()
}

func labelOrUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
