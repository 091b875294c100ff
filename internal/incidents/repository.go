// Package incidents deduplicates, tracks and resolves incidents raised by
// heartbeats, checks and the silent-host sweep.
package incidents

import (
	"context"

	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
)

// Repository defines the interface for incident storage.
type Repository interface {
	GetIncident(ctx context.Context, id string) (*domain.Incident, error)
	// FindOpenBySource returns non-terminal incidents for the source, oldest first.
	FindOpenBySource(ctx context.Context, sourceType, sourceID string) ([]*domain.Incident, error)
	// CreateIncident inserts the incident together with its first timeline entry.
	CreateIncident(ctx context.Context, incident *domain.Incident, entry *domain.TimelineEntry) error
	// UpdateIncident persists the incident and appends entry in one transaction.
	UpdateIncident(ctx context.Context, incident *domain.Incident, entry *domain.TimelineEntry) error
	AddTimelineEntry(ctx context.Context, entry *domain.TimelineEntry) error
	ListTimeline(ctx context.Context, incidentID string) ([]domain.TimelineEntry, error)
}

// Gateway receives incident lifecycle notifications.
type Gateway interface {
	IncidentCreated(ctx context.Context, incident *domain.Incident) error
	IncidentResolved(ctx context.Context, incident *domain.Incident) error
}
