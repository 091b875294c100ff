package domain

import "time"

// IncidentStatus represents the lifecycle state of an incident.
type IncidentStatus string

// Incident statuses.
const (
	IncidentStatusNew          IncidentStatus = "new"
	IncidentStatusAcknowledged IncidentStatus = "acknowledged"
	IncidentStatusInProgress   IncidentStatus = "in_progress"
	IncidentStatusResolved     IncidentStatus = "resolved"
	IncidentStatusClosed       IncidentStatus = "closed"
)

// IsValid checks if the incident status is valid.
func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentStatusNew, IncidentStatusAcknowledged, IncidentStatusInProgress,
		IncidentStatusResolved, IncidentStatusClosed:
		return true
	}
	return false
}

// IsTerminal reports whether the incident no longer participates in deduplication.
func (s IncidentStatus) IsTerminal() bool {
	return s == IncidentStatusResolved || s == IncidentStatusClosed
}

// IncidentSeverity represents how bad an incident is.
type IncidentSeverity string

// Incident severities.
const (
	SeverityCritical IncidentSeverity = "critical"
	SeverityHigh     IncidentSeverity = "high"
	SeverityMedium   IncidentSeverity = "medium"
	SeverityLow      IncidentSeverity = "low"
	SeverityInfo     IncidentSeverity = "info"
)

// IsValid checks if the severity is valid.
func (s IncidentSeverity) IsValid() bool {
	_, ok := severityPriority[s]
	return ok
}

// IncidentPriority represents how urgently an incident must be handled.
type IncidentPriority string

// Incident priorities.
const (
	PriorityUrgent IncidentPriority = "urgent"
	PriorityHigh   IncidentPriority = "high"
	PriorityMedium IncidentPriority = "medium"
	PriorityLow    IncidentPriority = "low"
)

var severityPriority = map[IncidentSeverity]IncidentPriority{
	SeverityCritical: PriorityUrgent,
	SeverityHigh:     PriorityHigh,
	SeverityMedium:   PriorityMedium,
	SeverityLow:      PriorityLow,
	SeverityInfo:     PriorityLow,
}

// PriorityFor derives the priority of a new incident from its severity.
// Unknown severities get medium priority.
func PriorityFor(s IncidentSeverity) IncidentPriority {
	if p, ok := severityPriority[s]; ok {
		return p
	}
	return PriorityMedium
}

// Incident source types.
const (
	SourceTypeHost    = "Host"
	SourceTypeService = "Service"
	SourceTypeCheck   = "Check"
)

// Default SLA budgets in minutes.
const (
	DefaultResponseSLAMinutes   = 15
	DefaultResolutionSLAMinutes = 240
)

// Incident is a deduplicated record of an ongoing problem with one resource.
type Incident struct {
	ID                   string           `json:"id"`
	Number               int64            `json:"number"`
	OrganizationID       string           `json:"organization_id"`
	CustomerID           *string          `json:"customer_id,omitempty"`
	Title                string           `json:"title"`
	Description          string           `json:"description,omitempty"`
	Status               IncidentStatus   `json:"status"`
	Severity             IncidentSeverity `json:"severity"`
	Priority             IncidentPriority `json:"priority"`
	SourceType           string           `json:"source_type"`
	SourceID             string           `json:"source_id"`
	ResourceName         string           `json:"resource_name,omitempty"`
	AcknowledgedByID     *string          `json:"acknowledged_by_id,omitempty"`
	AcknowledgedAt       *time.Time       `json:"acknowledged_at,omitempty"`
	ResolvedByID         *string          `json:"resolved_by_id,omitempty"`
	ResolvedAt           *time.Time       `json:"resolved_at,omitempty"`
	ClosedAt             *time.Time       `json:"closed_at,omitempty"`
	ResponseSLAMinutes   int              `json:"response_sla_minutes"`
	ResolutionSLAMinutes int              `json:"resolution_sla_minutes"`
	ResponseSLAMet       *bool            `json:"response_sla_met,omitempty"`
	ResolutionSLAMet     *bool            `json:"resolution_sla_met,omitempty"`
	RootCauseCategory    string           `json:"root_cause_category,omitempty"`
	RootCauseDescription string           `json:"root_cause_description,omitempty"`
	ResolutionSteps      string           `json:"resolution_steps,omitempty"`
	PreventiveActions    string           `json:"preventive_actions,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
	Timeline             []TimelineEntry  `json:"timeline,omitempty"`
}

// SLAMet reports whether the interval from creation to at fits within minutes.
func (i *Incident) SLAMet(at time.Time, minutes int) bool {
	return at.Sub(i.CreatedAt) <= time.Duration(minutes)*time.Minute
}

// Timeline event types.
const (
	TimelineCreated      = "Created"
	TimelineStatusUpdate = "StatusUpdate"
	TimelineAcknowledged = "Acknowledged"
	TimelineResolved     = "Resolved"
	TimelineAutoResolved = "AutoResolved"
)

// TimelineEntry is an append-only audit record attached to an incident.
type TimelineEntry struct {
	ID         int64     `json:"id"`
	IncidentID string    `json:"incident_id"`
	EventType  string    `json:"event_type"`
	Content    string    `json:"content"`
	ActorID    *string   `json:"actor_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
