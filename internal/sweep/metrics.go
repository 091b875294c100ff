package sweep

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "monitorsystem"

var (
	hostsMarkedDown = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "hosts_marked_down_total",
			Help:      "Hosts flipped to Down after missing heartbeats",
		},
	)

	hostsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "hosts_suppressed_total",
			Help:      "Silent hosts left untouched because alerting is suppressed",
		},
	)

	jobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "job_runs_total",
			Help:      "Background job runs, by job and result",
		},
		[]string{"job", "result"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "job_duration_seconds",
			Help:      "Background job run duration",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	rowsPurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "rows_purged_total",
			Help:      "Rows deleted by the retention job, by table",
		},
		[]string{"table"},
	)
)
