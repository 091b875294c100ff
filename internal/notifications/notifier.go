package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
)

// Notifier turns incident and host transitions into queued notifications,
// one per configured channel. It never delivers synchronously.
type Notifier struct {
	repo        Repository
	channels    []Channel
	baseURL     string
	maxAttempts int
	now         func() time.Time
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithNotifierClock overrides the time source.
func WithNotifierClock(now func() time.Time) NotifierOption {
	return func(n *Notifier) {
		n.now = now
	}
}

// NewNotifier creates a new Notifier.
func NewNotifier(repo Repository, channels []Channel, baseURL string, maxAttempts int, opts ...NotifierOption) *Notifier {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	n := &Notifier{
		repo:        repo,
		channels:    channels,
		baseURL:     strings.TrimRight(baseURL, "/"),
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// IncidentCreated queues notifications for a newly raised incident.
func (n *Notifier) IncidentCreated(ctx context.Context, incident *domain.Incident) error {
	payload := n.incidentPayload(MessageTypeIncidentCreated, incident)
	return n.enqueue(ctx, payload, &incident.ID, nil)
}

// IncidentResolved queues notifications for a resolved incident.
func (n *Notifier) IncidentResolved(ctx context.Context, incident *domain.Incident) error {
	payload := n.incidentPayload(MessageTypeIncidentResolved, incident)
	return n.enqueue(ctx, payload, &incident.ID, nil)
}

// HostDown queues notifications for a host that stopped reporting.
func (n *Notifier) HostDown(ctx context.Context, host *domain.Host) error {
	return n.enqueue(ctx, n.hostPayload(MessageTypeHostDown, host), nil, &host.ID)
}

// HostRecovered queues notifications for a host that is reporting again.
func (n *Notifier) HostRecovered(ctx context.Context, host *domain.Host) error {
	return n.enqueue(ctx, n.hostPayload(MessageTypeHostRecovered, host), nil, &host.ID)
}

func (n *Notifier) incidentPayload(messageType MessageType, incident *domain.Incident) NotificationPayload {
	return NotificationPayload{
		MessageType: messageType,
		Incident: &IncidentData{
			ID:              incident.ID,
			Number:          incident.Number,
			Title:           incident.Title,
			Description:     incident.Description,
			Status:          string(incident.Status),
			Severity:        string(incident.Severity),
			Priority:        string(incident.Priority),
			SourceType:      incident.SourceType,
			ResourceName:    incident.ResourceName,
			ResolutionSteps: incident.ResolutionSteps,
			CreatedAt:       incident.CreatedAt,
			ResolvedAt:      incident.ResolvedAt,
		},
		URL:         n.buildURL("incidents", incident.ID),
		GeneratedAt: n.now(),
	}
}

func (n *Notifier) hostPayload(messageType MessageType, host *domain.Host) NotificationPayload {
	return NotificationPayload{
		MessageType: messageType,
		Host: &HostData{
			ID:              host.ID,
			Name:            host.Name,
			Status:          string(host.CurrentStatus),
			LastSeenAt:      host.LastSeenAt,
			StatusChangedAt: host.StatusChangedAt,
		},
		URL:         n.buildURL("hosts", host.ID),
		GeneratedAt: n.now(),
	}
}

func (n *Notifier) buildURL(kind, id string) string {
	if n.baseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", n.baseURL, kind, id)
}

func (n *Notifier) enqueue(ctx context.Context, payload NotificationPayload, incidentID, hostID *string) error {
	if len(n.channels) == 0 {
		slog.Debug("no notification channels configured", "message_type", payload.MessageType)
		return nil
	}

	now := n.now()
	items := make([]*QueueItem, 0, len(n.channels))
	for _, ch := range n.channels {
		items = append(items, &QueueItem{
			IncidentID:    incidentID,
			HostID:        hostID,
			ChannelType:   ch.Type,
			Target:        ch.Target,
			MessageType:   payload.MessageType,
			Payload:       payload,
			Status:        QueueStatusPending,
			MaxAttempts:   n.maxAttempts,
			NextAttemptAt: now,
		})
	}

	if err := n.repo.EnqueueBatch(ctx, items); err != nil {
		return fmt.Errorf("enqueue %s notifications: %w", payload.MessageType, err)
	}

	recordEnqueued(payload.MessageType, len(items))
	slog.Debug("notifications enqueued", "message_type", payload.MessageType, "count", len(items))
	return nil
}
