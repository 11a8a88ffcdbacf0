package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, route, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "erp_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// RequestTotal counts HTTP requests by method, route, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erp_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// JobRunsTotal counts scheduled job runs by job and outcome (success, error, panic, skipped).
	JobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erp_job_runs_total",
			Help: "Total number of scheduled job runs by outcome",
		},
		[]string{"job", "outcome"},
	)

	// JobDuration tracks how long each scheduled job run takes.
	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "erp_job_duration_seconds",
			Help:    "Scheduled job duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	// JobRowsTouched counts documents updated by scheduled jobs.
	JobRowsTouched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erp_job_rows_touched_total",
			Help: "Total number of documents updated by scheduled jobs",
		},
		[]string{"job"},
	)

	// MeetingsCreated counts meetings materialized from schedules by frequency.
	MeetingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "erp_meetings_created_total",
			Help: "Total number of meetings materialized from recurring schedules",
		},
		[]string{"frequency"},
	)
)

var registerOnce sync.Once

func init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestDuration, RequestTotal, JobRunsTotal, JobDuration, JobRowsTouched, MeetingsCreated)
	})
}

// RecordRequest records duration and count for an HTTP request. route should
// be the router pattern, not the raw path, to bound label cardinality.
func RecordRequest(method, route string, statusCode int, durationSeconds float64) {
	if route == "" {
		route = "unmatched"
	}
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, route, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, route, status).Inc()
}

// RecordJob records one job run.
func RecordJob(job, outcome string, durationSeconds float64, rows int) {
	JobRunsTotal.WithLabelValues(job, outcome).Inc()
	JobDuration.WithLabelValues(job).Observe(durationSeconds)
	if rows > 0 {
		JobRowsTouched.WithLabelValues(job).Add(float64(rows))
	}
}

// AddMeetingsCreated counts n meetings created for frequency.
func AddMeetingsCreated(frequency string, n int) {
	if n > 0 {
		MeetingsCreated.WithLabelValues(frequency).Add(float64(n))
	}
}
