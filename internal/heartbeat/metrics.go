package heartbeat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "monitorsystem"

var (
	heartbeatsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "processed_total",
			Help:      "Heartbeats received, by result (ok, unauthorized, error)",
		},
		[]string{"result"},
	)

	hostTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "host_status_transitions_total",
			Help:      "Host status changes caused by heartbeats, by new status",
		},
		[]string{"status"},
	)

	serviceTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "service_status_transitions_total",
			Help:      "Monitored service status changes, by new status",
		},
		[]string{"status"},
	)
)
