package heartbeat

import (
	"encoding/json"
	"time"
)

// Report is the payload an agent posts on every heartbeat.
type Report struct {
	Timestamp    time.Time     `json:"timestamp"`
	AgentVersion string        `json:"agent_version" validate:"max=50"`
	System       SystemInfo    `json:"system"`
	Disks        []DiskInfo    `json:"disks" validate:"dive"`
	Services     []ServiceInfo `json:"services" validate:"dive"`
	Network      *NetworkInfo  `json:"network,omitempty"`
}

// SystemInfo holds host-wide resource usage.
type SystemInfo struct {
	Hostname      string  `json:"hostname" validate:"max=255"`
	OSType        string  `json:"os_type" validate:"max=50"`
	OSVersion     string  `json:"os_version" validate:"max=255"`
	CPUPercent    float64 `json:"cpu_percent" validate:"gte=0,lte=100"`
	RAMPercent    float64 `json:"ram_percent" validate:"gte=0,lte=100"`
	RAMUsedMB     int64   `json:"ram_used_mb" validate:"gte=0"`
	RAMTotalMB    int64   `json:"ram_total_mb" validate:"gte=0"`
	UptimeSeconds int64   `json:"uptime_seconds" validate:"gte=0"`
	ProcessCount  int     `json:"process_count" validate:"gte=0"`
}

// DiskInfo describes one mounted disk.
type DiskInfo struct {
	Name        string  `json:"name" validate:"required,max=100"`
	MountPoint  string  `json:"mount_point" validate:"max=255"`
	FileSystem  string  `json:"file_system" validate:"max=50"`
	TotalGB     float64 `json:"total_gb" validate:"gte=0"`
	UsedGB      float64 `json:"used_gb" validate:"gte=0"`
	UsedPercent float64 `json:"used_percent" validate:"gte=0,lte=100"`
}

// ServiceInfo describes one OS service as seen by the agent.
type ServiceInfo struct {
	Name        string          `json:"name" validate:"required,max=255"`
	DisplayName string          `json:"display_name" validate:"max=255"`
	Type        string          `json:"type" validate:"required"`
	Status      string          `json:"status"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// NetworkInfo holds addresses and interface counters.
type NetworkInfo struct {
	PrimaryIP string `json:"primary_ip" validate:"omitempty,ip"`
	PublicIP  string `json:"public_ip" validate:"omitempty,ip"`
	InBytes   *int64 `json:"in_bytes,omitempty"`
	OutBytes  *int64 `json:"out_bytes,omitempty"`
}

// Response is returned to the agent after a processed heartbeat.
type Response struct {
	Success            bool   `json:"success"`
	HostID             string `json:"host_id"`
	NextCheckInSeconds int    `json:"next_check_in_seconds"`
	Message            string `json:"message,omitempty"`
}
