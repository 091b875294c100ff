package notifications

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "monitorsystem"

// Delivery outcomes.
const (
	outcomeSent   = "sent"
	outcomeRetry  = "retry"
	outcomeFailed = "failed"
)

var (
	queueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "queue_size",
			Help:      "Notifications in the queue by status",
		},
		[]string{"status"},
	)

	enqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "enqueued_total",
			Help:      "Notifications enqueued by message type",
		},
		[]string{"message_type"},
	)

	fetchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "fetched_total",
			Help:      "Notifications claimed by workers",
		},
	)

	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "deliveries_total",
			Help:      "Delivery attempts by channel type and outcome",
		},
		[]string{"channel_type", "outcome"},
	)

	deliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "delivery_duration_seconds",
			Help:      "Time spent in a successful send",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"channel_type"},
	)

	requeuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "requeued_total",
			Help:      "Items returned to pending after being stuck in processing",
		},
	)
)

func recordEnqueued(messageType MessageType, count int) {
	enqueuedTotal.WithLabelValues(string(messageType)).Add(float64(count))
}

func recordFetched(count int) {
	fetchedTotal.Add(float64(count))
}

// recordDelivery counts one attempt. took is observed only for sends.
func recordDelivery(channel ChannelType, outcome string, took time.Duration) {
	deliveriesTotal.WithLabelValues(string(channel), outcome).Inc()
	if outcome == outcomeSent {
		deliveryDuration.WithLabelValues(string(channel)).Observe(took.Seconds())
	}
}

func recordRequeued(count int64) {
	requeuedTotal.Add(float64(count))
}

// RecordQueueStats publishes queue sizes.
func RecordQueueStats(stats *QueueStats) {
	for status, n := range map[QueueStatus]int64{
		QueueStatusPending:    stats.Pending,
		QueueStatusProcessing: stats.Processing,
		QueueStatusSent:       stats.Sent,
		QueueStatusFailed:     stats.Failed,
	} {
		queueSize.WithLabelValues(string(status)).Set(float64(n))
	}
}
