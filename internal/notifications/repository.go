// Package notifications delivers incident and host status notifications
// through a persistent outbox queue.
package notifications

import (
	"context"
	"time"
)

// Repository defines the interface for the notification queue.
type Repository interface {
	EnqueueBatch(ctx context.Context, items []*QueueItem) error
	// FetchPendingNotifications claims due items and marks them processing.
	FetchPendingNotifications(ctx context.Context, limit int) ([]*QueueItem, error)
	MarkAsSent(ctx context.Context, id string) error
	MarkAsFailed(ctx context.Context, id string, err error) error
	MarkForRetry(ctx context.Context, id string, err error, nextAttempt time.Time) error
	RecoverStuckProcessing(ctx context.Context, olderThan time.Duration) (int64, error)
	DeleteOldSentItems(ctx context.Context, olderThan time.Duration) (int64, error)
	GetQueueStats(ctx context.Context) (*QueueStats, error)
}
