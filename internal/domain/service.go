package domain

import (
	"strings"
	"time"
)

// ServiceType identifies the kind of OS-level service an agent reports.
type ServiceType string

// Service types.
const (
	ServiceTypeIISSite         ServiceType = "iis_site"
	ServiceTypeIISAppPool      ServiceType = "iis_app_pool"
	ServiceTypeWindowsService  ServiceType = "windows_service"
	ServiceTypeSystemdUnit     ServiceType = "systemd_unit"
	ServiceTypeDockerContainer ServiceType = "docker_container"
	ServiceTypeProcess         ServiceType = "process"
)

// serviceTypeAliases accepts both snake case and the agents' PascalCase names.
// Keys are lower case with separators removed.
var serviceTypeAliases = map[string]ServiceType{
	"iissite":         ServiceTypeIISSite,
	"iisapppool":      ServiceTypeIISAppPool,
	"windowsservice":  ServiceTypeWindowsService,
	"systemdunit":     ServiceTypeSystemdUnit,
	"dockercontainer": ServiceTypeDockerContainer,
	"process":         ServiceTypeProcess,
}

// ParseServiceType resolves an agent-reported service type.
func ParseServiceType(s string) (ServiceType, bool) {
	key := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
	t, ok := serviceTypeAliases[key]
	return t, ok
}

// Service is an OS service running on a host, identified by
// (HostID, Type, Name).
type Service struct {
	ID                string      `json:"id"`
	HostID            string      `json:"host_id"`
	Type              ServiceType `json:"service_type"`
	Name              string      `json:"service_name"`
	DisplayName       string      `json:"display_name,omitempty"`
	Description       string      `json:"description,omitempty"`
	CurrentStatus     Status      `json:"current_status"`
	PreviousStatus    *Status     `json:"previous_status,omitempty"`
	LastStatusChange  *time.Time  `json:"last_status_change,omitempty"`
	LastHealthyAt     *time.Time  `json:"last_healthy_at,omitempty"`
	Config            []byte      `json:"config,omitempty"`
	MonitoringEnabled bool        `json:"monitoring_enabled"`
	AlertOnStop       bool        `json:"alert_on_stop"`
	RestartCount      int         `json:"restart_count"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// DisplayLabel returns the display name, falling back to the service name.
func (s *Service) DisplayLabel() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}

// ServiceStatusHistory records a single service status transition.
type ServiceStatusHistory struct {
	ID        int64     `json:"id"`
	ServiceID string    `json:"service_id"`
	OldStatus *Status   `json:"old_status,omitempty"`
	NewStatus Status    `json:"new_status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
