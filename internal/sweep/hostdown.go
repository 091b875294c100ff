package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
	"github.com/palmiyeitadmin/monitorsystem/internal/incidents"
	"github.com/palmiyeitadmin/monitorsystem/internal/pkg/ctxlog"
)

// DefaultHostDownThreshold is how long a host may stay silent before it is
// considered Down.
const DefaultHostDownThreshold = 90 * time.Second

// HostStore is the part of the host repository used by the sweep.
type HostStore interface {
	ListSilentHosts(ctx context.Context, lastSeenBefore time.Time) ([]*domain.Host, error)
	MarkDown(ctx context.Context, host *domain.Host, silentSince time.Time) (bool, error)
}

// IncidentEngine raises incidents.
type IncidentEngine interface {
	CreateOrUpdate(ctx context.Context, input incidents.CreateInput) (*domain.Incident, error)
}

// HostNotifier announces hosts going down.
type HostNotifier interface {
	HostDown(ctx context.Context, host *domain.Host) error
}

// Broadcaster pushes host updates to real-time subscribers.
type Broadcaster interface {
	BroadcastHostUpdate(update domain.HostUpdate)
}

// HostDownSweeper flips hosts that stopped sending heartbeats to Down.
type HostDownSweeper struct {
	store       HostStore
	incidents   IncidentEngine
	notifier    HostNotifier
	broadcaster Broadcaster
	threshold   time.Duration
	now         func() time.Time
}

// NewHostDownSweeper creates a sweeper. notifier and broadcaster may be nil.
// A non-positive threshold selects DefaultHostDownThreshold.
func NewHostDownSweeper(store HostStore, engine IncidentEngine, notifier HostNotifier, broadcaster Broadcaster, threshold time.Duration) *HostDownSweeper {
	if threshold <= 0 {
		threshold = DefaultHostDownThreshold
	}
	return &HostDownSweeper{
		store:       store,
		incidents:   engine,
		notifier:    notifier,
		broadcaster: broadcaster,
		threshold:   threshold,
		now:         time.Now,
	}
}

// Name implements Job.
func (s *HostDownSweeper) Name() string { return "host_down" }

// Run marks every silent host Down and raises a Critical incident for it.
// Hosts whose alerting is suppressed keep their status. A heartbeat landing
// between the scan and the update wins.
func (s *HostDownSweeper) Run(ctx context.Context) error {
	now := s.now()
	cutoff := now.Add(-s.threshold)

	silent, err := s.store.ListSilentHosts(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list silent hosts: %w", err)
	}

	var errs []error
	for _, host := range silent {
		if !host.ShouldAlert(now) {
			hostsSuppressed.Inc()
			ctxlog.FromContext(ctx).Debug("silent host skipped, alerting suppressed", "host_id", host.ID, "host", host.Name)
			continue
		}
		if err := s.markDown(ctx, host, now, cutoff); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *HostDownSweeper) markDown(ctx context.Context, host *domain.Host, now, cutoff time.Time) error {
	lastSeen := host.LastSeenAt
	if !host.SetStatus(domain.StatusDown, now) {
		return nil
	}

	changed, err := s.store.MarkDown(ctx, host, cutoff)
	if err != nil {
		return fmt.Errorf("mark host %s down: %w", host.ID, err)
	}
	if !changed {
		ctxlog.FromContext(ctx).Debug("host reported before it could be marked down", "host_id", host.ID)
		return nil
	}

	hostsMarkedDown.Inc()
	ctxlog.FromContext(ctx).Warn("host detected as down",
		"host_id", host.ID,
		"host", host.Name,
		"last_seen_at", lastSeen,
	)

	_, err = s.incidents.CreateOrUpdate(ctx, incidents.CreateInput{
		OrganizationID: host.OrganizationID,
		CustomerID:     host.CustomerID,
		SourceType:     domain.SourceTypeHost,
		SourceID:       host.ID,
		ResourceName:   host.Name,
		Title:          fmt.Sprintf("Host DOWN: %s", host.Name),
		Description:    fmt.Sprintf("No heartbeat received since %s UTC", formatLastSeen(lastSeen)),
		Severity:       domain.SeverityCritical,
	})
	if err != nil {
		ctxlog.FromContext(ctx).Error("failed to raise host incident", "host_id", host.ID, "error", err)
	}

	if s.notifier != nil {
		if err := s.notifier.HostDown(ctx, host); err != nil {
			ctxlog.FromContext(ctx).Error("failed to notify host down", "host_id", host.ID, "error", err)
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastHostUpdate(domain.NewHostUpdate(host))
	}
	return nil
}

func formatLastSeen(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(time.DateTime)
}
