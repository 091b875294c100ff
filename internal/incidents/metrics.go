package incidents

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "monitorsystem"

var (
	incidentsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "opened_total",
			Help:      "Incidents created, by source type and severity",
		},
		[]string{"source_type", "severity"},
	)

	incidentsDeduplicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "deduplicated_total",
			Help:      "Triggers folded into an existing open incident",
		},
		[]string{"source_type"},
	)

	incidentsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "resolved_total",
			Help:      "Incidents resolved, by mode (manual, auto)",
		},
		[]string{"mode"},
	)
)
