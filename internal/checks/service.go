package checks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
	"github.com/palmiyeitadmin/monitorsystem/internal/incidents"
)

// RecoveryNote is recorded on incidents auto-resolved by a passing check.
const RecoveryNote = "Check is back online"

// IncidentEngine is the part of the incident service used by checks.
type IncidentEngine interface {
	CreateOrUpdate(ctx context.Context, input incidents.CreateInput) (*domain.Incident, error)
	AutoResolve(ctx context.Context, sourceType, sourceID, note string) error
}

// Service records check results and drives check status transitions.
type Service struct {
	repo      Repository
	incidents IncidentEngine
	now       func() time.Time
}

// NewService creates a new check service.
func NewService(repo Repository, engine IncidentEngine) *Service {
	return &Service{
		repo:      repo,
		incidents: engine,
		now:       time.Now,
	}
}

// RecordResult persists result, then applies a status change to check.
// Incidents are opened when the check goes down and auto-resolved when it
// recovers. The result is persisted even if the transition handling fails.
func (s *Service) RecordResult(ctx context.Context, check *domain.Check, result *domain.CheckResult) error {
	result.CheckID = check.ID
	if err := s.repo.SaveResult(ctx, result); err != nil {
		return fmt.Errorf("save check result: %w", err)
	}
	checksExecuted.WithLabelValues(string(check.Type), string(result.Status)).Inc()

	prev := check.CurrentStatus
	next := result.Status
	if prev == next {
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, check.ID, next, s.now()); err != nil {
		return fmt.Errorf("update check status: %w", err)
	}
	check.CurrentStatus = next
	checkTransitions.WithLabelValues(string(next)).Inc()

	slog.Info("check status changed",
		"check_id", check.ID,
		"check", check.Name,
		"from", prev,
		"to", next,
	)

	switch {
	case next == domain.StatusDown:
		_, err := s.incidents.CreateOrUpdate(ctx, incidents.CreateInput{
			OrganizationID: check.OrganizationID,
			CustomerID:     check.CustomerID,
			SourceType:     domain.SourceTypeCheck,
			SourceID:       check.ID,
			ResourceName:   check.Name,
			Title:          fmt.Sprintf("Check DOWN: %s", check.Name),
			Description:    result.ErrorMessage,
			Severity:       incidentSeverity(check),
		})
		if err != nil {
			return fmt.Errorf("raise check incident: %w", err)
		}
	case prev == domain.StatusDown && next == domain.StatusUp:
		if err := s.incidents.AutoResolve(ctx, domain.SourceTypeCheck, check.ID, RecoveryNote); err != nil {
			return fmt.Errorf("auto-resolve check incident: %w", err)
		}
	}
	return nil
}

// incidentSeverity is Critical for checks bound to a host and High otherwise.
func incidentSeverity(check *domain.Check) domain.IncidentSeverity {
	if check.HostID != nil && *check.HostID != "" {
		return domain.SeverityCritical
	}
	return domain.SeverityHigh
}
