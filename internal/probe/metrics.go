package probe

import (
	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "monitorsystem"

var (
	probeExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "probe",
			Name:      "executions_total",
			Help:      "Total probe executions by check type and resulting status",
		},
		[]string{"check_type", "status"},
	)

	probeResponseTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "probe",
			Name:      "response_time_seconds",
			Help:      "Measured response time of probe executions",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"check_type"},
	)
)

func recordExecution(t domain.CheckType, result domain.CheckResult) {
	probeExecutions.WithLabelValues(string(t), string(result.Status)).Inc()
	probeResponseTime.WithLabelValues(string(t)).Observe(float64(result.ResponseTimeMs) / 1000)
}
