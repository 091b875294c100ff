package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "monitorsystem",
			Subsystem: "realtime",
			Name:      "clients",
			Help:      "Connected WebSocket clients",
		},
	)

	messagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "monitorsystem",
			Subsystem: "realtime",
			Name:      "broadcasts_total",
			Help:      "Messages broadcast to the hub, by type",
		},
		[]string{"type"},
	)
)
