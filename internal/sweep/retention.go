package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/palmiyeitadmin/monitorsystem/internal/pkg/ctxlog"
)

// Retention periods applied when the configured value is not positive.
const (
	DefaultMetricsRetention      = 30 * 24 * time.Hour
	DefaultHistoryRetention      = 90 * 24 * time.Hour
	DefaultNotificationRetention = 7 * 24 * time.Hour
)

// RetentionConfig holds how long each kind of time-series row is kept.
type RetentionConfig struct {
	Metrics       time.Duration
	History       time.Duration
	Notifications time.Duration
}

// HostHistoryStore purges host time series.
type HostHistoryStore interface {
	DeleteMetricsBefore(ctx context.Context, before time.Time) (int64, error)
	DeleteServiceHistoryBefore(ctx context.Context, before time.Time) (int64, error)
}

// CheckResultStore purges check results.
type CheckResultStore interface {
	DeleteResultsBefore(ctx context.Context, before time.Time) (int64, error)
}

// NotificationStore purges delivered notifications.
type NotificationStore interface {
	DeleteOldSentItems(ctx context.Context, olderThan time.Duration) (int64, error)
}

type purge struct {
	table string
	run   func() (int64, error)
}

// Retention deletes expired metrics, history and delivered notifications.
type Retention struct {
	hosts         HostHistoryStore
	checks        CheckResultStore
	notifications NotificationStore
	cfg           RetentionConfig
	now           func() time.Time
}

// NewRetention creates the retention job. notifications may be nil.
func NewRetention(hosts HostHistoryStore, checks CheckResultStore, notifications NotificationStore, cfg RetentionConfig) *Retention {
	if cfg.Metrics <= 0 {
		cfg.Metrics = DefaultMetricsRetention
	}
	if cfg.History <= 0 {
		cfg.History = DefaultHistoryRetention
	}
	if cfg.Notifications <= 0 {
		cfg.Notifications = DefaultNotificationRetention
	}
	return &Retention{
		hosts:         hosts,
		checks:        checks,
		notifications: notifications,
		cfg:           cfg,
		now:           time.Now,
	}
}

// Name implements Job.
func (r *Retention) Name() string { return "retention" }

// Run implements Job. Every purge is attempted even if an earlier one fails.
func (r *Retention) Run(ctx context.Context) error {
	now := r.now()

	purges := []purge{
		{"host_metrics", func() (int64, error) {
			return r.hosts.DeleteMetricsBefore(ctx, now.Add(-r.cfg.Metrics))
		}},
		{"service_status_history", func() (int64, error) {
			return r.hosts.DeleteServiceHistoryBefore(ctx, now.Add(-r.cfg.History))
		}},
		{"check_results", func() (int64, error) {
			return r.checks.DeleteResultsBefore(ctx, now.Add(-r.cfg.History))
		}},
	}
	if r.notifications != nil {
		purges = append(purges, purge{"notification_queue", func() (int64, error) {
			return r.notifications.DeleteOldSentItems(ctx, r.cfg.Notifications)
		}})
	}

	var errs []error
	for _, p := range purges {
		n, err := p.run()
		if err != nil {
			errs = append(errs, fmt.Errorf("purge %s: %w", p.table, err))
			continue
		}
		rowsPurged.WithLabelValues(p.table).Add(float64(n))
		if n > 0 {
			ctxlog.FromContext(ctx).Info("purged expired rows", "table", p.table, "rows", n)
		}
	}
	return errors.Join(errs...)
}
