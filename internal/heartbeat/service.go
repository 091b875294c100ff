// Package heartbeat processes agent heartbeats: host status, disk and service
// inventory, metric snapshots and the incidents they imply.
package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
	"github.com/palmiyeitadmin/monitorsystem/internal/hosts"
	"github.com/palmiyeitadmin/monitorsystem/internal/incidents"
)

// Notes recorded on auto-resolved incidents.
const (
	HostRecoveryNote    = "Host is back online"
	ServiceRecoveryNote = "Service is back online"
)

// IncidentEngine is the part of the incident service used by heartbeats.
type IncidentEngine interface {
	CreateOrUpdate(ctx context.Context, input incidents.CreateInput) (*domain.Incident, error)
	AutoResolve(ctx context.Context, sourceType, sourceID, note string) error
}

// HostNotifier announces host recovery.
type HostNotifier interface {
	HostRecovered(ctx context.Context, host *domain.Host) error
}

// Broadcaster pushes host updates to real-time subscribers.
type Broadcaster interface {
	BroadcastHostUpdate(update domain.HostUpdate)
}

// Service processes heartbeats.
type Service struct {
	repo        hosts.Repository
	incidents   IncidentEngine
	notifier    HostNotifier
	broadcaster Broadcaster
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithNotifier sets the host recovery notifier.
func WithNotifier(n HostNotifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithBroadcaster sets the real-time broadcaster.
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Service) {
		s.broadcaster = b
	}
}

// NewService creates a new heartbeat service.
func NewService(repo hosts.Repository, engine IncidentEngine, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		incidents: engine,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessHeartbeat authenticates the agent by apiKey and applies report to its
// host. Writes are not transactional: a failure part way leaves earlier
// writes in place and the agent's next heartbeat reconciles them.
func (s *Service) ProcessHeartbeat(ctx context.Context, apiKey string, report *Report) (*Response, error) {
	host, err := s.Authenticate(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return s.Apply(ctx, host, report)
}

// Authenticate resolves the active host owning apiKey. Unknown keys and
// inactive hosts yield ErrUnauthorized.
func (s *Service) Authenticate(ctx context.Context, apiKey string) (*domain.Host, error) {
	host, err := s.authenticate(ctx, apiKey)
	if errors.Is(err, ErrUnauthorized) {
		heartbeatsProcessed.WithLabelValues("unauthorized").Inc()
	} else if err != nil {
		heartbeatsProcessed.WithLabelValues("error").Inc()
	}
	return host, err
}

// Apply processes report for a host returned by Authenticate.
func (s *Service) Apply(ctx context.Context, host *domain.Host, report *Report) (*Response, error) {
	resp, err := s.process(ctx, host, report)
	if err != nil {
		heartbeatsProcessed.WithLabelValues("error").Inc()
		return nil, err
	}
	heartbeatsProcessed.WithLabelValues("ok").Inc()
	return resp, nil
}

func (s *Service) authenticate(ctx context.Context, apiKey string) (*domain.Host, error) {
	if apiKey == "" {
		return nil, ErrUnauthorized
	}
	host, err := s.repo.GetByAPIKey(ctx, apiKey)
	if errors.Is(err, hosts.ErrHostNotFound) {
		slog.Warn("heartbeat with unknown api key", "key_prefix", keyPrefix(apiKey))
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("lookup host by api key: %w", err)
	}
	if !host.IsActive {
		slog.Warn("heartbeat for inactive host", "host_id", host.ID)
		return nil, ErrUnauthorized
	}
	return host, nil
}

func (s *Service) process(ctx context.Context, host *domain.Host, report *Report) (*Response, error) {
	now := s.now()
	prev, next, changed, err := s.saveHost(ctx, host, report, now)
	if err != nil {
		return nil, err
	}

	if err := s.repo.ReplaceDisks(ctx, host.ID, disksFromReport(host.ID, report.Disks, now)); err != nil {
		return nil, fmt.Errorf("replace disks: %w", err)
	}

	if err := s.reconcileServices(ctx, host, report.Services, now); err != nil {
		return nil, err
	}

	if err := s.repo.InsertMetric(ctx, metricFromReport(host.ID, report, now)); err != nil {
		return nil, fmt.Errorf("insert metric: %w", err)
	}

	if changed {
		hostTransitions.WithLabelValues(string(next)).Inc()
		slog.Info("host status changed",
			"host_id", host.ID,
			"host", host.Name,
			"from", prev,
			"to", next,
		)
		if prev == domain.StatusDown && next == domain.StatusUp {
			s.hostRecovered(ctx, host)
		}
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastHostUpdate(domain.NewHostUpdate(host))
	}

	return &Response{
		Success:            true,
		HostID:             host.ID,
		NextCheckInSeconds: host.CheckIntervalSeconds,
		Message:            "Heartbeat processed successfully",
	}, nil
}

// maxStatusAttempts bounds the reload loop when a concurrent writer, such as
// the silent-host sweep, changes the stored status under a heartbeat.
const maxStatusAttempts = 3

// saveHost writes the heartbeat snapshot and the status derived from it. The
// write only lands on the status it was computed from; on conflict the host
// is reloaded so the transition is taken from the committed status.
func (s *Service) saveHost(ctx context.Context, host *domain.Host, report *Report, now time.Time) (prev, next domain.Status, changed bool, err error) {
	for attempt := 1; ; attempt++ {
		prev = host.CurrentStatus
		next = DetermineStatus(host.Thresholds, report)
		changed = host.SetStatus(next, now)
		applySnapshot(host, report, now)

		err = s.repo.UpdateHeartbeat(ctx, host, prev)
		if err == nil {
			return prev, next, changed, nil
		}
		if !errors.Is(err, hosts.ErrStatusConflict) || attempt == maxStatusAttempts {
			return "", "", false, fmt.Errorf("update host: %w", err)
		}

		slog.Debug("host status changed during heartbeat, reloading", "host_id", host.ID, "attempt", attempt)
		fresh, err := s.repo.GetHost(ctx, host.ID)
		if err != nil {
			return "", "", false, fmt.Errorf("reload host: %w", err)
		}
		*host = *fresh
	}
}

// hostRecovered runs after the new status is persisted. Failures are logged
// since the Down edge is already consumed.
func (s *Service) hostRecovered(ctx context.Context, host *domain.Host) {
	if err := s.incidents.AutoResolve(ctx, domain.SourceTypeHost, host.ID, HostRecoveryNote); err != nil {
		slog.Error("failed to auto-resolve host incidents", "host_id", host.ID, "error", err)
	}
	if s.notifier != nil {
		if err := s.notifier.HostRecovered(ctx, host); err != nil {
			slog.Error("failed to notify host recovered", "host_id", host.ID, "error", err)
		}
	}
}

// reconcileServices upserts every reported service. Services missing from the
// report are left untouched, unlike disks which are replaced as a set.
func (s *Service) reconcileServices(ctx context.Context, host *domain.Host, reported []ServiceInfo, now time.Time) error {
	for _, info := range reported {
		serviceType, ok := domain.ParseServiceType(info.Type)
		if !ok {
			slog.Warn("unknown service type in heartbeat", "host_id", host.ID, "type", info.Type, "service", info.Name)
			continue
		}
		status := domain.ParseAgentServiceStatus(info.Status)

		existing, err := s.repo.GetService(ctx, host.ID, serviceType, info.Name)
		switch {
		case errors.Is(err, hosts.ErrServiceNotFound):
			if err := s.discoverService(ctx, host, serviceType, info, status, now); err != nil {
				return err
			}
		case err != nil:
			return fmt.Errorf("get service %s: %w", info.Name, err)
		default:
			if err := s.updateService(ctx, host, existing, info, status, now); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) discoverService(ctx context.Context, host *domain.Host, serviceType domain.ServiceType, info ServiceInfo, status domain.Status, now time.Time) error {
	svc := &domain.Service{
		HostID:            host.ID,
		Type:              serviceType,
		Name:              info.Name,
		DisplayName:       info.DisplayName,
		CurrentStatus:     status,
		LastStatusChange:  &now,
		Config:            info.Config,
		MonitoringEnabled: true,
		AlertOnStop:       true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if status == domain.StatusUp {
		svc.LastHealthyAt = &now
	}
	if err := s.repo.CreateService(ctx, svc); err != nil {
		return fmt.Errorf("create service %s: %w", info.Name, err)
	}

	entry := &domain.ServiceStatusHistory{
		ServiceID: svc.ID,
		NewStatus: status,
		Message:   "Service discovered",
		CreatedAt: now,
	}
	if err := s.repo.AddServiceHistory(ctx, entry); err != nil {
		return fmt.Errorf("add service history: %w", err)
	}
	return nil
}

func (s *Service) updateService(ctx context.Context, host *domain.Host, svc *domain.Service, info ServiceInfo, status domain.Status, now time.Time) error {
	if info.DisplayName != "" {
		svc.DisplayName = info.DisplayName
	}
	if len(info.Config) > 0 {
		svc.Config = info.Config
	}
	svc.UpdatedAt = now

	prev := svc.CurrentStatus
	changed := prev != status
	if changed {
		svc.PreviousStatus = &prev
		svc.CurrentStatus = status
		svc.LastStatusChange = &now
		if status == domain.StatusUp {
			svc.LastHealthyAt = &now
		}
	}

	if err := s.repo.UpdateService(ctx, svc); err != nil {
		return fmt.Errorf("update service %s: %w", svc.Name, err)
	}
	if !changed {
		return nil
	}

	serviceTransitions.WithLabelValues(string(status)).Inc()
	entry := &domain.ServiceStatusHistory{
		ServiceID: svc.ID,
		OldStatus: &prev,
		NewStatus: status,
		Message:   fmt.Sprintf("Status changed from %s to %s", prev.Display(), status.Display()),
		CreatedAt: now,
	}
	if err := s.repo.AddServiceHistory(ctx, entry); err != nil {
		return fmt.Errorf("add service history: %w", err)
	}

	switch {
	case status == domain.StatusDown:
		s.serviceDown(ctx, host, svc, now)
	case prev == domain.StatusDown && status == domain.StatusUp:
		if err := s.incidents.AutoResolve(ctx, domain.SourceTypeService, svc.ID, ServiceRecoveryNote); err != nil {
			slog.Error("failed to auto-resolve service incidents", "service_id", svc.ID, "error", err)
		}
	}
	return nil
}

func (s *Service) serviceDown(ctx context.Context, host *domain.Host, svc *domain.Service, now time.Time) {
	if !svc.MonitoringEnabled || !svc.AlertOnStop || host.IsInMaintenance(now) {
		return
	}

	label := svc.DisplayLabel()
	slog.Warn("service down", "host_id", host.ID, "service_id", svc.ID, "service", label)

	_, err := s.incidents.CreateOrUpdate(ctx, incidents.CreateInput{
		OrganizationID: host.OrganizationID,
		CustomerID:     host.CustomerID,
		SourceType:     domain.SourceTypeService,
		SourceID:       svc.ID,
		ResourceName:   label,
		Title:          fmt.Sprintf("Service Stopped: %s", label),
		Description:    fmt.Sprintf("Service %s on host %s has stopped", svc.Name, host.Name),
		Severity:       domain.SeverityHigh,
	})
	if err != nil {
		slog.Error("failed to raise service incident", "service_id", svc.ID, "error", err)
	}
}

func applySnapshot(host *domain.Host, report *Report, now time.Time) {
	sys := report.System
	host.LastSeenAt = &now
	host.UpdatedAt = now
	host.AgentVersion = report.AgentVersion
	if sys.Hostname != "" {
		host.Hostname = sys.Hostname
	}
	if sys.OSVersion != "" {
		host.OSVersion = sys.OSVersion
	}

	cpu, ram := sys.CPUPercent, sys.RAMPercent
	used, total := sys.RAMUsedMB, sys.RAMTotalMB
	uptime, procs := sys.UptimeSeconds, sys.ProcessCount
	host.CPUPercent = &cpu
	host.RAMPercent = &ram
	host.RAMUsedMB = &used
	host.RAMTotalMB = &total
	host.UptimeSeconds = &uptime
	host.ProcessCount = &procs

	if report.Network != nil {
		host.PrimaryIP = report.Network.PrimaryIP
		host.PublicIP = report.Network.PublicIP
	}
}

func disksFromReport(hostID string, reported []DiskInfo, now time.Time) []domain.HostDisk {
	disks := make([]domain.HostDisk, 0, len(reported))
	for _, d := range reported {
		disks = append(disks, domain.HostDisk{
			HostID:      hostID,
			Name:        d.Name,
			MountPoint:  d.MountPoint,
			FileSystem:  d.FileSystem,
			TotalGB:     d.TotalGB,
			UsedGB:      d.UsedGB,
			FreeGB:      max(d.TotalGB-d.UsedGB, 0),
			UsedPercent: d.UsedPercent,
			UpdatedAt:   now,
		})
	}
	return disks
}

func metricFromReport(hostID string, report *Report, now time.Time) *domain.HostMetric {
	sys := report.System
	m := &domain.HostMetric{
		HostID:        hostID,
		CPUPercent:    sys.CPUPercent,
		RAMPercent:    sys.RAMPercent,
		RAMUsedMB:     sys.RAMUsedMB,
		RAMTotalMB:    sys.RAMTotalMB,
		UptimeSeconds: sys.UptimeSeconds,
		ProcessCount:  sys.ProcessCount,
		RecordedAt:    now,
	}
	for _, d := range report.Disks {
		m.DiskMaxPercent = max(m.DiskMaxPercent, d.UsedPercent)
	}
	if n := report.Network; n != nil {
		if n.InBytes != nil {
			m.NetworkInBytes = *n.InBytes
		}
		if n.OutBytes != nil {
			m.NetworkOutBytes = *n.OutBytes
		}
	}
	return m
}

func keyPrefix(apiKey string) string {
	if len(apiKey) <= 8 {
		return "***"
	}
	return apiKey[:8] + "..."
}
