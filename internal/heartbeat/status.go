package heartbeat

import (
	"strings"

	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
)

// DetermineStatus derives the host status from a report. The first matching
// rule wins: any critical threshold reached gives Warning, then a stopped or
// failed service gives Degraded, then any warning threshold gives Warning.
// Critical resource usage never yields Down since the agent is reachable.
func DetermineStatus(t domain.Thresholds, report *Report) domain.Status {
	sys := report.System
	if reached(sys.CPUPercent, t.CPUCritical) || reached(sys.RAMPercent, t.RAMCritical) {
		return domain.StatusWarning
	}
	for _, d := range report.Disks {
		if reached(d.UsedPercent, t.DiskCritical) {
			return domain.StatusWarning
		}
	}

	for _, s := range report.Services {
		switch strings.ToLower(strings.TrimSpace(s.Status)) {
		case "stopped", "failed":
			return domain.StatusDegraded
		}
	}

	if reached(sys.CPUPercent, t.CPUWarning) || reached(sys.RAMPercent, t.RAMWarning) {
		return domain.StatusWarning
	}
	for _, d := range report.Disks {
		if reached(d.UsedPercent, t.DiskWarning) {
			return domain.StatusWarning
		}
	}
	return domain.StatusUp
}

// reached treats a zero threshold as disabled.
func reached(value float64, threshold int) bool {
	return threshold > 0 && value >= float64(threshold)
}
