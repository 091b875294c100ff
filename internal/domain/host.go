package domain

import "time"

// Host represents a machine reporting through an agent.
type Host struct {
	ID                   string     `json:"id"`
	OrganizationID       string     `json:"organization_id"`
	CustomerID           *string    `json:"customer_id,omitempty"`
	Name                 string     `json:"name"`
	Hostname             string     `json:"hostname,omitempty"`
	APIKey               string     `json:"-"`
	OSVersion            string     `json:"os_version,omitempty"`
	AgentVersion         string     `json:"agent_version,omitempty"`
	CheckIntervalSeconds int        `json:"check_interval_seconds"`
	CurrentStatus        Status     `json:"current_status"`
	PreviousStatus       *Status    `json:"previous_status,omitempty"`
	StatusChangedAt      *time.Time `json:"status_changed_at,omitempty"`
	LastSeenAt           *time.Time `json:"last_seen_at,omitempty"`

	UptimeSeconds *int64   `json:"uptime_seconds,omitempty"`
	CPUPercent    *float64 `json:"cpu_percent,omitempty"`
	RAMPercent    *float64 `json:"ram_percent,omitempty"`
	RAMUsedMB     *int64   `json:"ram_used_mb,omitempty"`
	RAMTotalMB    *int64   `json:"ram_total_mb,omitempty"`
	ProcessCount  *int     `json:"process_count,omitempty"`
	PrimaryIP     string   `json:"primary_ip,omitempty"`
	PublicIP      string   `json:"public_ip,omitempty"`

	Thresholds Thresholds `json:"thresholds"`

	MonitoringEnabled bool `json:"monitoring_enabled"`
	AlertOnDown       bool `json:"alert_on_down"`
	AlertOnHighCPU    bool `json:"alert_on_high_cpu"`
	AlertOnHighRAM    bool `json:"alert_on_high_ram"`
	AlertOnHighDisk   bool `json:"alert_on_high_disk"`

	MaintenanceMode    bool       `json:"maintenance_mode"`
	MaintenanceStartAt *time.Time `json:"maintenance_start_at,omitempty"`
	MaintenanceEndAt   *time.Time `json:"maintenance_end_at,omitempty"`
	MaintenanceReason  string     `json:"maintenance_reason,omitempty"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Thresholds holds per-host alerting thresholds in percent.
type Thresholds struct {
	CPUWarning   int `json:"cpu_warning"`
	CPUCritical  int `json:"cpu_critical"`
	RAMWarning   int `json:"ram_warning"`
	RAMCritical  int `json:"ram_critical"`
	DiskWarning  int `json:"disk_warning"`
	DiskCritical int `json:"disk_critical"`
}

// DefaultThresholds returns the thresholds new hosts start with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUWarning:   80,
		CPUCritical:  95,
		RAMWarning:   80,
		RAMCritical:  95,
		DiskWarning:  80,
		DiskCritical: 95,
	}
}

// IsInMaintenance reports whether the maintenance window covers now.
// Missing start or end bounds are treated as open.
func (h *Host) IsInMaintenance(now time.Time) bool {
	if !h.MaintenanceMode {
		return false
	}
	if h.MaintenanceStartAt != nil && now.Before(*h.MaintenanceStartAt) {
		return false
	}
	if h.MaintenanceEndAt != nil && now.After(*h.MaintenanceEndAt) {
		return false
	}
	return true
}

// ShouldAlert reports whether status changes of the host may raise incidents.
func (h *Host) ShouldAlert(now time.Time) bool {
	return h.MonitoringEnabled && !h.IsInMaintenance(now) && h.AlertOnDown
}

// SetStatus moves the host to status, keeping the previous status and the
// change timestamp in step. It reports whether the status changed.
func (h *Host) SetStatus(status Status, now time.Time) bool {
	if h.CurrentStatus == status {
		return false
	}
	prev := h.CurrentStatus
	h.PreviousStatus = &prev
	h.CurrentStatus = status
	h.StatusChangedAt = &now
	return true
}

// HostDisk is a disk reported by the agent in its latest heartbeat.
type HostDisk struct {
	ID          string    `json:"id"`
	HostID      string    `json:"host_id"`
	Name        string    `json:"name"`
	MountPoint  string    `json:"mount_point"`
	FileSystem  string    `json:"file_system,omitempty"`
	TotalGB     float64   `json:"total_gb"`
	UsedGB      float64   `json:"used_gb"`
	FreeGB      float64   `json:"free_gb"`
	UsedPercent float64   `json:"used_percent"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HostMetric is a point-in-time snapshot written for every heartbeat.
type HostMetric struct {
	ID              int64     `json:"id"`
	HostID          string    `json:"host_id"`
	CPUPercent      float64   `json:"cpu_percent"`
	RAMPercent      float64   `json:"ram_percent"`
	RAMUsedMB       int64     `json:"ram_used_mb"`
	RAMTotalMB      int64     `json:"ram_total_mb"`
	DiskMaxPercent  float64   `json:"disk_max_percent"`
	NetworkInBytes  int64     `json:"network_in_bytes"`
	NetworkOutBytes int64     `json:"network_out_bytes"`
	UptimeSeconds   int64     `json:"uptime_seconds"`
	ProcessCount    int       `json:"process_count"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// HostUpdate is the lightweight event pushed to real-time subscribers.
type HostUpdate struct {
	HostID          string     `json:"host_id"`
	HostName        string     `json:"host_name"`
	CustomerID      *string    `json:"customer_id,omitempty"`
	CurrentStatus   Status     `json:"current_status"`
	CPUPercent      *float64   `json:"cpu_percent,omitempty"`
	RAMPercent      *float64   `json:"ram_percent,omitempty"`
	LastSeenAt      *time.Time `json:"last_seen_at,omitempty"`
	StatusChangedAt *time.Time `json:"status_changed_at,omitempty"`
}

// NewHostUpdate builds a real-time update from the host's current state.
func NewHostUpdate(h *Host) HostUpdate {
	return HostUpdate{
		HostID:          h.ID,
		HostName:        h.Name,
		CustomerID:      h.CustomerID,
		CurrentStatus:   h.CurrentStatus,
		CPUPercent:      h.CPUPercent,
		RAMPercent:      h.RAMPercent,
		LastSeenAt:      h.LastSeenAt,
		StatusChangedAt: h.StatusChangedAt,
	}
}
