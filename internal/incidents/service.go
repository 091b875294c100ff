package incidents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
)

// Service implements the incident lifecycle.
type Service struct {
	repo    Repository
	gateway Gateway
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new incident service. gateway may be nil.
func NewService(repo Repository, gateway Gateway, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		gateway: gateway,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput holds data for raising an incident.
type CreateInput struct {
	OrganizationID string
	CustomerID     *string
	SourceType     string
	SourceID       string
	ResourceName   string
	Title          string
	Description    string
	Severity       domain.IncidentSeverity
}

// ResolveInput holds the post-mortem fields recorded on manual resolution.
type ResolveInput struct {
	RootCauseCategory    string
	RootCauseDescription string
	ResolutionSteps      string
	PreventiveActions    string
}

// CreateOrUpdate raises an incident for the source, or appends a status update
// to the open incident already tracking it.
func (s *Service) CreateOrUpdate(ctx context.Context, input CreateInput) (*domain.Incident, error) {
	existing, err := s.findOpen(ctx, input.SourceType, input.SourceID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.appendStatusUpdate(ctx, existing, input)
	}

	if !input.Severity.IsValid() {
		input.Severity = domain.SeverityMedium
	}

	now := s.now()
	incident := &domain.Incident{
		OrganizationID:       input.OrganizationID,
		CustomerID:           input.CustomerID,
		Title:                input.Title,
		Description:          input.Description,
		Status:               domain.IncidentStatusNew,
		Severity:             input.Severity,
		Priority:             domain.PriorityFor(input.Severity),
		SourceType:           input.SourceType,
		SourceID:             input.SourceID,
		ResourceName:         input.ResourceName,
		ResponseSLAMinutes:   domain.DefaultResponseSLAMinutes,
		ResolutionSLAMinutes: domain.DefaultResolutionSLAMinutes,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	entry := &domain.TimelineEntry{
		EventType: domain.TimelineCreated,
		Content:   fmt.Sprintf("Incident automatically created: %s", input.Title),
		CreatedAt: now,
	}

	err = s.repo.CreateIncident(ctx, incident, entry)
	if errors.Is(err, ErrOpenIncidentExists) {
		// Lost the race against a concurrent trigger for the same source.
		existing, findErr := s.findOpen(ctx, input.SourceType, input.SourceID)
		if findErr != nil {
			return nil, findErr
		}
		if existing != nil {
			return s.appendStatusUpdate(ctx, existing, input)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}
	incident.Timeline = []domain.TimelineEntry{*entry}

	incidentsOpened.WithLabelValues(incident.SourceType, string(incident.Severity)).Inc()
	slog.Info("incident created",
		"incident_id", incident.ID,
		"number", incident.Number,
		"source_type", incident.SourceType,
		"source_id", incident.SourceID,
		"severity", incident.Severity,
	)

	if s.gateway != nil {
		if err := s.gateway.IncidentCreated(ctx, incident); err != nil {
			slog.Error("failed to notify incident created", "incident_id", incident.ID, "error", err)
		}
	}

	return incident, nil
}

func (s *Service) findOpen(ctx context.Context, sourceType, sourceID string) (*domain.Incident, error) {
	open, err := s.repo.FindOpenBySource(ctx, sourceType, sourceID)
	if err != nil {
		return nil, fmt.Errorf("find open incident: %w", err)
	}
	if len(open) == 0 {
		return nil, nil
	}
	return open[0], nil
}

func (s *Service) appendStatusUpdate(ctx context.Context, incident *domain.Incident, input CreateInput) (*domain.Incident, error) {
	entry := &domain.TimelineEntry{
		IncidentID: incident.ID,
		EventType:  domain.TimelineStatusUpdate,
		Content:    fmt.Sprintf("Status update: %s", input.Description),
		CreatedAt:  s.now(),
	}
	if err := s.repo.AddTimelineEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("add timeline entry: %w", err)
	}

	incidentsDeduplicated.WithLabelValues(incident.SourceType).Inc()
	slog.Debug("trigger folded into open incident",
		"incident_id", incident.ID,
		"source_type", incident.SourceType,
		"source_id", incident.SourceID,
	)
	return incident, nil
}

// GetIncident returns an incident with its timeline.
func (s *Service) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	incident, err := s.repo.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}

	timeline, err := s.repo.ListTimeline(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	incident.Timeline = timeline
	return incident, nil
}

// Acknowledge marks the incident as acknowledged by userID and evaluates the
// response SLA. Unknown ids and already acknowledged incidents are no-ops.
func (s *Service) Acknowledge(ctx context.Context, id, userID string) error {
	incident, err := s.lookup(ctx, id)
	if err != nil || incident == nil {
		return err
	}
	if incident.Status.IsTerminal() {
		return ErrIncidentClosed
	}
	if incident.AcknowledgedAt != nil {
		return nil
	}

	now := s.now()
	incident.Status = domain.IncidentStatusAcknowledged
	incident.AcknowledgedByID = optional(userID)
	incident.AcknowledgedAt = &now
	incident.UpdatedAt = now
	if incident.ResponseSLAMinutes > 0 {
		met := incident.SLAMet(now, incident.ResponseSLAMinutes)
		incident.ResponseSLAMet = &met
	}

	entry := &domain.TimelineEntry{
		IncidentID: incident.ID,
		EventType:  domain.TimelineAcknowledged,
		Content:    "Incident acknowledged",
		ActorID:    optional(userID),
		CreatedAt:  now,
	}
	if err := s.repo.UpdateIncident(ctx, incident, entry); err != nil {
		return fmt.Errorf("acknowledge incident: %w", err)
	}
	return nil
}

// Resolve marks the incident as resolved by userID, records the post-mortem
// fields and evaluates the resolution SLA. Unknown ids and terminal incidents
// are no-ops.
func (s *Service) Resolve(ctx context.Context, id, userID string, input ResolveInput) error {
	incident, err := s.lookup(ctx, id)
	if err != nil || incident == nil {
		return err
	}
	if incident.Status.IsTerminal() {
		return nil
	}

	incident.RootCauseCategory = input.RootCauseCategory
	incident.RootCauseDescription = input.RootCauseDescription
	incident.ResolutionSteps = input.ResolutionSteps
	incident.PreventiveActions = input.PreventiveActions

	content := "Incident resolved"
	if input.ResolutionSteps != "" {
		content = fmt.Sprintf("Incident resolved: %s", input.ResolutionSteps)
	}
	entry := &domain.TimelineEntry{
		IncidentID: incident.ID,
		EventType:  domain.TimelineResolved,
		Content:    content,
		ActorID:    optional(userID),
	}
	if err := s.resolve(ctx, incident, userID, entry); err != nil {
		return err
	}

	incidentsResolved.WithLabelValues("manual").Inc()
	return nil
}

// AutoResolve resolves every open incident for the source, using note as the
// resolution steps.
func (s *Service) AutoResolve(ctx context.Context, sourceType, sourceID, note string) error {
	open, err := s.repo.FindOpenBySource(ctx, sourceType, sourceID)
	if err != nil {
		return fmt.Errorf("find open incidents: %w", err)
	}

	var errs []error
	for _, incident := range open {
		incident.ResolutionSteps = note
		entry := &domain.TimelineEntry{
			IncidentID: incident.ID,
			EventType:  domain.TimelineAutoResolved,
			Content:    fmt.Sprintf("Incident auto-resolved: %s", note),
		}
		if err := s.resolve(ctx, incident, "", entry); err != nil {
			errs = append(errs, err)
			continue
		}
		incidentsResolved.WithLabelValues("auto").Inc()
		slog.Info("incident auto-resolved",
			"incident_id", incident.ID,
			"source_type", sourceType,
			"source_id", sourceID,
		)
	}
	return errors.Join(errs...)
}

func (s *Service) resolve(ctx context.Context, incident *domain.Incident, userID string, entry *domain.TimelineEntry) error {
	now := s.now()
	incident.Status = domain.IncidentStatusResolved
	incident.ResolvedByID = optional(userID)
	incident.ResolvedAt = &now
	incident.UpdatedAt = now
	if incident.ResolutionSLAMinutes > 0 {
		met := incident.SLAMet(now, incident.ResolutionSLAMinutes)
		incident.ResolutionSLAMet = &met
	}
	entry.CreatedAt = now

	if err := s.repo.UpdateIncident(ctx, incident, entry); err != nil {
		return fmt.Errorf("resolve incident %s: %w", incident.ID, err)
	}

	if s.gateway != nil {
		if err := s.gateway.IncidentResolved(ctx, incident); err != nil {
			slog.Error("failed to notify incident resolved", "incident_id", incident.ID, "error", err)
		}
	}
	return nil
}

// lookup returns nil, nil when the incident does not exist.
func (s *Service) lookup(ctx context.Context, id string) (*domain.Incident, error) {
	incident, err := s.repo.GetIncident(ctx, id)
	if errors.Is(err, ErrIncidentNotFound) {
		slog.Debug("incident not found, ignoring", "incident_id", id)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return incident, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
