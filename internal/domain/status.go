package domain

import "strings"

// Status represents the health of a host, service or check.
type Status string

// Statuses.
const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusWarning  Status = "warning"
	StatusDegraded Status = "degraded"
	StatusUnknown  Status = "unknown"
	StatusDisabled Status = "disabled"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusUp, StatusDown, StatusWarning, StatusDegraded, StatusUnknown, StatusDisabled:
		return true
	}
	return false
}

// Display returns the human readable form used in messages.
func (s Status) Display() string {
	if d, ok := statusDisplay[s]; ok {
		return d
	}
	return "Unknown"
}

var statusDisplay = map[Status]string{
	StatusUp:       "Up",
	StatusDown:     "Down",
	StatusWarning:  "Warning",
	StatusDegraded: "Degraded",
	StatusUnknown:  "Unknown",
	StatusDisabled: "Disabled",
}

// agentServiceStatuses maps status strings reported by agents.
// Keys are lower case.
var agentServiceStatuses = map[string]Status{
	"running":  StatusUp,
	"started":  StatusUp,
	"active":   StatusUp,
	"stopped":  StatusDown,
	"failed":   StatusDown,
	"inactive": StatusDown,
	"starting": StatusWarning,
	"stopping": StatusWarning,
	"paused":   StatusWarning,
	"degraded": StatusDegraded,
}

// ParseAgentServiceStatus maps an agent-reported service status to a Status.
// Unrecognized values map to StatusUnknown.
func ParseAgentServiceStatus(s string) Status {
	if st, ok := agentServiceStatuses[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st
	}
	return StatusUnknown
}
