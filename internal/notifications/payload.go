package notifications

import "time"

// MessageType defines the type of notification.
type MessageType string

// Message types.
const (
	MessageTypeIncidentCreated  MessageType = "incident_created"
	MessageTypeIncidentResolved MessageType = "incident_resolved"
	MessageTypeHostDown         MessageType = "host_down"
	MessageTypeHostRecovered    MessageType = "host_recovered"
)

// NotificationPayload contains data for rendering a notification.
type NotificationPayload struct {
	MessageType MessageType   `json:"message_type"`
	Incident    *IncidentData `json:"incident,omitempty"`
	Host        *HostData     `json:"host,omitempty"`
	URL         string        `json:"url,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// IncidentData contains incident information for notification.
type IncidentData struct {
	ID              string     `json:"id"`
	Number          int64      `json:"number"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Status          string     `json:"status"`
	Severity        string     `json:"severity"`
	Priority        string     `json:"priority"`
	SourceType      string     `json:"source_type"`
	ResourceName    string     `json:"resource_name,omitempty"`
	ResolutionSteps string     `json:"resolution_steps,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

// Duration returns how long the incident was open, or zero while unresolved.
func (d *IncidentData) Duration() time.Duration {
	if d.ResolvedAt == nil {
		return 0
	}
	return d.ResolvedAt.Sub(d.CreatedAt)
}

// HostData contains host information for notification.
type HostData struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Status          string     `json:"status"`
	LastSeenAt      *time.Time `json:"last_seen_at,omitempty"`
	StatusChangedAt *time.Time `json:"status_changed_at,omitempty"`
}
