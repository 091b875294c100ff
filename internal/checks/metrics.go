package checks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "monitorsystem"

var (
	checksExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checks",
			Name:      "executed_total",
			Help:      "Total check executions by check type and status",
		},
		[]string{"check_type", "status"},
	)

	checksSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checks",
			Name:      "skipped_total",
			Help:      "Due checks not started on a tick",
		},
		[]string{"reason"},
	)

	checksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "checks",
			Name:      "in_flight",
			Help:      "Checks currently executing",
		},
	)

	checkTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checks",
			Name:      "status_transitions_total",
			Help:      "Check status transitions by target status",
		},
		[]string{"status"},
	)
)
