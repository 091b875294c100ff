// Package postgres provides PostgreSQL implementation of hosts repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
	"github.com/palmiyeitadmin/monitorsystem/internal/hosts"
)

// Repository implements hosts.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const hostColumns = `
	id, organization_id, customer_id, name, hostname, api_key, os_version, agent_version,
	check_interval_seconds, current_status, previous_status, status_changed_at, last_seen_at,
	uptime_seconds, cpu_percent, ram_percent, ram_used_mb, ram_total_mb, process_count,
	primary_ip, public_ip,
	cpu_warning_threshold, cpu_critical_threshold, ram_warning_threshold, ram_critical_threshold,
	disk_warning_threshold, disk_critical_threshold,
	monitoring_enabled, alert_on_down, alert_on_high_cpu, alert_on_high_ram, alert_on_high_disk,
	maintenance_mode, maintenance_start_at, maintenance_end_at, maintenance_reason,
	is_active, created_at, updated_at
`

func scanHost(row pgx.Row) (*domain.Host, error) {
	var h domain.Host
	err := row.Scan(
		&h.ID,
		&h.OrganizationID,
		&h.CustomerID,
		&h.Name,
		&h.Hostname,
		&h.APIKey,
		&h.OSVersion,
		&h.AgentVersion,
		&h.CheckIntervalSeconds,
		&h.CurrentStatus,
		&h.PreviousStatus,
		&h.StatusChangedAt,
		&h.LastSeenAt,
		&h.UptimeSeconds,
		&h.CPUPercent,
		&h.RAMPercent,
		&h.RAMUsedMB,
		&h.RAMTotalMB,
		&h.ProcessCount,
		&h.PrimaryIP,
		&h.PublicIP,
		&h.Thresholds.CPUWarning,
		&h.Thresholds.CPUCritical,
		&h.Thresholds.RAMWarning,
		&h.Thresholds.RAMCritical,
		&h.Thresholds.DiskWarning,
		&h.Thresholds.DiskCritical,
		&h.MonitoringEnabled,
		&h.AlertOnDown,
		&h.AlertOnHighCPU,
		&h.AlertOnHighRAM,
		&h.AlertOnHighDisk,
		&h.MaintenanceMode,
		&h.MaintenanceStartAt,
		&h.MaintenanceEndAt,
		&h.MaintenanceReason,
		&h.IsActive,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// CreateHost inserts a host. Zero thresholds are replaced with the defaults.
func (r *Repository) CreateHost(ctx context.Context, host *domain.Host) error {
	if host.Thresholds == (domain.Thresholds{}) {
		host.Thresholds = domain.DefaultThresholds()
	}
	if host.CheckIntervalSeconds <= 0 {
		host.CheckIntervalSeconds = 60
	}
	if host.CurrentStatus == "" {
		host.CurrentStatus = domain.StatusUnknown
	}

	query := `
		INSERT INTO hosts (
			organization_id, customer_id, name, hostname, api_key, check_interval_seconds,
			current_status,
			cpu_warning_threshold, cpu_critical_threshold, ram_warning_threshold, ram_critical_threshold,
			disk_warning_threshold, disk_critical_threshold,
			monitoring_enabled, alert_on_down, alert_on_high_cpu, alert_on_high_ram, alert_on_high_disk,
			is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		host.OrganizationID,
		host.CustomerID,
		host.Name,
		host.Hostname,
		host.APIKey,
		host.CheckIntervalSeconds,
		host.CurrentStatus,
		host.Thresholds.CPUWarning,
		host.Thresholds.CPUCritical,
		host.Thresholds.RAMWarning,
		host.Thresholds.RAMCritical,
		host.Thresholds.DiskWarning,
		host.Thresholds.DiskCritical,
		host.MonitoringEnabled,
		host.AlertOnDown,
		host.AlertOnHighCPU,
		host.AlertOnHighRAM,
		host.AlertOnHighDisk,
		host.IsActive,
	).Scan(&host.ID, &host.CreatedAt, &host.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create host: %w", err)
	}
	return nil
}

// GetHost retrieves a host by ID.
func (r *Repository) GetHost(ctx context.Context, id string) (*domain.Host, error) {
	query := `SELECT ` + hostColumns + ` FROM hosts WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByAPIKey retrieves the host owning apiKey.
func (r *Repository) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Host, error) {
	query := `SELECT ` + hostColumns + ` FROM hosts WHERE api_key = $1`
	return r.getOne(ctx, query, apiKey)
}

func (r *Repository) getOne(ctx context.Context, query string, arg any) (*domain.Host, error) {
	h, err := scanHost(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, hosts.ErrHostNotFound
		}
		return nil, fmt.Errorf("get host: %w", err)
	}
	return h, nil
}

// UpdateHeartbeat persists status, identity and metric snapshot fields
// provided the stored status still equals expected.
func (r *Repository) UpdateHeartbeat(ctx context.Context, host *domain.Host, expected domain.Status) error {
	query := `
		UPDATE hosts SET
			hostname = $2,
			os_version = $3,
			agent_version = $4,
			current_status = $5,
			previous_status = $6,
			status_changed_at = $7,
			last_seen_at = $8,
			uptime_seconds = $9,
			cpu_percent = $10,
			ram_percent = $11,
			ram_used_mb = $12,
			ram_total_mb = $13,
			process_count = $14,
			primary_ip = $15,
			public_ip = $16,
			updated_at = $17
		WHERE id = $1 AND current_status = $18
	`
	tag, err := r.db.Exec(ctx, query,
		host.ID,
		host.Hostname,
		host.OSVersion,
		host.AgentVersion,
		host.CurrentStatus,
		host.PreviousStatus,
		host.StatusChangedAt,
		host.LastSeenAt,
		host.UptimeSeconds,
		host.CPUPercent,
		host.RAMPercent,
		host.RAMUsedMB,
		host.RAMTotalMB,
		host.ProcessCount,
		host.PrimaryIP,
		host.PublicIP,
		host.UpdatedAt,
		expected,
	)
	if err != nil {
		return fmt.Errorf("update host: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var current domain.Status
	err = r.db.QueryRow(ctx, `SELECT current_status FROM hosts WHERE id = $1`, host.ID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return hosts.ErrHostNotFound
	}
	if err != nil {
		return fmt.Errorf("read host status: %w", err)
	}
	return hosts.ErrStatusConflict
}

// MarkDown sets the host Down when it is still silent and not already Down.
func (r *Repository) MarkDown(ctx context.Context, host *domain.Host, silentSince time.Time) (bool, error) {
	query := `
		UPDATE hosts SET
			current_status = $2,
			previous_status = $3,
			status_changed_at = $4,
			updated_at = $4
		WHERE id = $1
		  AND current_status <> 'down'
		  AND (last_seen_at IS NULL OR last_seen_at < $5)
	`
	tag, err := r.db.Exec(ctx, query,
		host.ID,
		host.CurrentStatus,
		host.PreviousStatus,
		host.StatusChangedAt,
		silentSince,
	)
	if err != nil {
		return false, fmt.Errorf("mark host down: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListSilentHosts returns active monitored hosts that last reported before
// lastSeenBefore and are not already Down.
func (r *Repository) ListSilentHosts(ctx context.Context, lastSeenBefore time.Time) ([]*domain.Host, error) {
	query := `SELECT ` + hostColumns + `
		FROM hosts
		WHERE is_active AND monitoring_enabled
		  AND current_status <> 'down'
		  AND last_seen_at IS NOT NULL AND last_seen_at < $1
		ORDER BY last_seen_at
	`
	rows, err := r.db.Query(ctx, query, lastSeenBefore)
	if err != nil {
		return nil, fmt.Errorf("list silent hosts: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.Host, 0)
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan host: %w", err)
		}
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hosts: %w", err)
	}
	return result, nil
}

// ClearExpiredMaintenance ends maintenance windows whose end time has passed.
func (r *Repository) ClearExpiredMaintenance(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE hosts SET
			maintenance_mode = FALSE,
			maintenance_start_at = NULL,
			maintenance_end_at = NULL,
			maintenance_reason = '',
			updated_at = $1
		WHERE maintenance_mode AND maintenance_end_at IS NOT NULL AND maintenance_end_at < $1
	`
	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("clear expired maintenance: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ReplaceDisks swaps the host's disk set for disks in one transaction.
func (r *Repository) ReplaceDisks(ctx context.Context, hostID string, disks []domain.HostDisk) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM host_disks WHERE host_id = $1`, hostID); err != nil {
		return fmt.Errorf("delete disks: %w", err)
	}

	if len(disks) > 0 {
		batch := &pgx.Batch{}
		query := `
			INSERT INTO host_disks (host_id, name, mount_point, file_system, total_gb, used_gb, free_gb, used_percent, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		for _, d := range disks {
			batch.Queue(query, hostID, d.Name, d.MountPoint, d.FileSystem, d.TotalGB, d.UsedGB, d.FreeGB, d.UsedPercent, d.UpdatedAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert disks: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListDisks returns the host's current disks.
func (r *Repository) ListDisks(ctx context.Context, hostID string) ([]domain.HostDisk, error) {
	query := `
		SELECT id, host_id, name, mount_point, file_system, total_gb, used_gb, free_gb, used_percent, updated_at
		FROM host_disks
		WHERE host_id = $1
		ORDER BY name
	`
	rows, err := r.db.Query(ctx, query, hostID)
	if err != nil {
		return nil, fmt.Errorf("list disks: %w", err)
	}
	defer rows.Close()

	disks := make([]domain.HostDisk, 0)
	for rows.Next() {
		var d domain.HostDisk
		if err := rows.Scan(&d.ID, &d.HostID, &d.Name, &d.MountPoint, &d.FileSystem,
			&d.TotalGB, &d.UsedGB, &d.FreeGB, &d.UsedPercent, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan disk: %w", err)
		}
		disks = append(disks, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate disks: %w", err)
	}
	return disks, nil
}

const serviceColumns = `
	id, host_id, service_type, service_name, display_name, description,
	current_status, previous_status, last_status_change, last_healthy_at, config,
	monitoring_enabled, alert_on_stop, restart_count, created_at, updated_at
`

func scanService(row pgx.Row) (*domain.Service, error) {
	var s domain.Service
	err := row.Scan(
		&s.ID,
		&s.HostID,
		&s.Type,
		&s.Name,
		&s.DisplayName,
		&s.Description,
		&s.CurrentStatus,
		&s.PreviousStatus,
		&s.LastStatusChange,
		&s.LastHealthyAt,
		&s.Config,
		&s.MonitoringEnabled,
		&s.AlertOnStop,
		&s.RestartCount,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetService retrieves a service by its natural key.
func (r *Repository) GetService(ctx context.Context, hostID string, serviceType domain.ServiceType, name string) (*domain.Service, error) {
	query := `SELECT ` + serviceColumns + `
		FROM services
		WHERE host_id = $1 AND service_type = $2 AND service_name = $3
	`
	s, err := scanService(r.db.QueryRow(ctx, query, hostID, serviceType, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, hosts.ErrServiceNotFound
		}
		return nil, fmt.Errorf("get service: %w", err)
	}
	return s, nil
}

// ListServices returns all services known for the host.
func (r *Repository) ListServices(ctx context.Context, hostID string) ([]*domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE host_id = $1 ORDER BY service_type, service_name`
	rows, err := r.db.Query(ctx, query, hostID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	services := make([]*domain.Service, 0)
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}
	return services, nil
}

// CreateService inserts a newly reported service.
func (r *Repository) CreateService(ctx context.Context, s *domain.Service) error {
	query := `
		INSERT INTO services (
			host_id, service_type, service_name, display_name, description,
			current_status, previous_status, last_status_change, last_healthy_at, config,
			monitoring_enabled, alert_on_stop, restart_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		s.HostID,
		s.Type,
		s.Name,
		s.DisplayName,
		s.Description,
		s.CurrentStatus,
		s.PreviousStatus,
		s.LastStatusChange,
		s.LastHealthyAt,
		s.Config,
		s.MonitoringEnabled,
		s.AlertOnStop,
		s.RestartCount,
		s.CreatedAt,
		s.UpdatedAt,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return nil
}

// UpdateService persists agent-reported service fields.
func (r *Repository) UpdateService(ctx context.Context, s *domain.Service) error {
	query := `
		UPDATE services SET
			display_name = $2,
			description = $3,
			current_status = $4,
			previous_status = $5,
			last_status_change = $6,
			last_healthy_at = $7,
			config = $8,
			restart_count = $9,
			updated_at = $10
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		s.ID,
		s.DisplayName,
		s.Description,
		s.CurrentStatus,
		s.PreviousStatus,
		s.LastStatusChange,
		s.LastHealthyAt,
		s.Config,
		s.RestartCount,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return hosts.ErrServiceNotFound
	}
	return nil
}

// AddServiceHistory appends a service status transition.
func (r *Repository) AddServiceHistory(ctx context.Context, e *domain.ServiceStatusHistory) error {
	query := `
		INSERT INTO service_status_history (service_id, old_status, new_status, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	if err := r.db.QueryRow(ctx, query, e.ServiceID, e.OldStatus, e.NewStatus, e.Message, e.CreatedAt).Scan(&e.ID); err != nil {
		return fmt.Errorf("add service history: %w", err)
	}
	return nil
}

// InsertMetric appends a metric snapshot.
func (r *Repository) InsertMetric(ctx context.Context, m *domain.HostMetric) error {
	query := `
		INSERT INTO host_metrics (
			host_id, cpu_percent, ram_percent, ram_used_mb, ram_total_mb, disk_max_percent,
			network_in_bytes, network_out_bytes, uptime_seconds, process_count, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		m.HostID,
		m.CPUPercent,
		m.RAMPercent,
		m.RAMUsedMB,
		m.RAMTotalMB,
		m.DiskMaxPercent,
		m.NetworkInBytes,
		m.NetworkOutBytes,
		m.UptimeSeconds,
		m.ProcessCount,
		m.RecordedAt,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}
	return nil
}

// DeleteMetricsBefore removes metric rows recorded before the cutoff.
func (r *Repository) DeleteMetricsBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM host_metrics WHERE recorded_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete metrics: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteServiceHistoryBefore removes service history rows created before the cutoff.
func (r *Repository) DeleteServiceHistoryBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM service_status_history WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete service history: %w", err)
	}
	return tag.RowsAffected(), nil
}
