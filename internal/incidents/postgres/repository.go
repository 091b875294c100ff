// Package postgres provides PostgreSQL implementation of incidents repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
	"github.com/palmiyeitadmin/monitorsystem/internal/incidents"
)

// PostgreSQL error codes.
const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

// querier is an interface for database operations that both *pgxpool.Pool and pgx.Tx implement.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements incidents.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const incidentColumns = `
	id, number, organization_id, customer_id, title, description,
	status, severity, priority, source_type, source_id, resource_name,
	acknowledged_by_id, acknowledged_at, resolved_by_id, resolved_at, closed_at,
	response_sla_minutes, resolution_sla_minutes, response_sla_met, resolution_sla_met,
	root_cause_category, root_cause_description, resolution_steps, preventive_actions,
	created_at, updated_at
`

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var inc domain.Incident
	err := row.Scan(
		&inc.ID,
		&inc.Number,
		&inc.OrganizationID,
		&inc.CustomerID,
		&inc.Title,
		&inc.Description,
		&inc.Status,
		&inc.Severity,
		&inc.Priority,
		&inc.SourceType,
		&inc.SourceID,
		&inc.ResourceName,
		&inc.AcknowledgedByID,
		&inc.AcknowledgedAt,
		&inc.ResolvedByID,
		&inc.ResolvedAt,
		&inc.ClosedAt,
		&inc.ResponseSLAMinutes,
		&inc.ResolutionSLAMinutes,
		&inc.ResponseSLAMet,
		&inc.ResolutionSLAMet,
		&inc.RootCauseCategory,
		&inc.RootCauseDescription,
		&inc.ResolutionSteps,
		&inc.PreventiveActions,
		&inc.CreatedAt,
		&inc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

// GetIncident retrieves an incident by ID.
func (r *Repository) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`

	inc, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return inc, nil
}

// FindOpenBySource returns non-terminal incidents for the given source.
func (r *Repository) FindOpenBySource(ctx context.Context, sourceType, sourceID string) ([]*domain.Incident, error) {
	query := `SELECT ` + incidentColumns + `
		FROM incidents
		WHERE source_type = $1 AND source_id = $2
		  AND status NOT IN ('resolved', 'closed')
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, sourceType, sourceID)
	if err != nil {
		return nil, fmt.Errorf("find open incidents: %w", err)
	}
	defer rows.Close()

	var result []*domain.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		result = append(result, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incidents: %w", err)
	}
	return result, nil
}

// CreateIncident inserts the incident and its first timeline entry.
func (r *Repository) CreateIncident(ctx context.Context, incident *domain.Incident, entry *domain.TimelineEntry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	query := `
		INSERT INTO incidents (
			organization_id, customer_id, title, description, status, severity, priority,
			source_type, source_id, resource_name, response_sla_minutes, resolution_sla_minutes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, number
	`
	err = tx.QueryRow(ctx, query,
		incident.OrganizationID,
		incident.CustomerID,
		incident.Title,
		incident.Description,
		incident.Status,
		incident.Severity,
		incident.Priority,
		incident.SourceType,
		incident.SourceID,
		incident.ResourceName,
		incident.ResponseSLAMinutes,
		incident.ResolutionSLAMinutes,
		incident.CreatedAt,
		incident.UpdatedAt,
	).Scan(&incident.ID, &incident.Number)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return incidents.ErrOpenIncidentExists
		}
		return fmt.Errorf("insert incident: %w", err)
	}

	entry.IncidentID = incident.ID
	if err := insertTimelineEntry(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// UpdateIncident persists mutable incident fields and appends entry.
func (r *Repository) UpdateIncident(ctx context.Context, incident *domain.Incident, entry *domain.TimelineEntry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	query := `
		UPDATE incidents SET
			status = $2,
			acknowledged_by_id = $3,
			acknowledged_at = $4,
			resolved_by_id = $5,
			resolved_at = $6,
			closed_at = $7,
			response_sla_met = $8,
			resolution_sla_met = $9,
			root_cause_category = $10,
			root_cause_description = $11,
			resolution_steps = $12,
			preventive_actions = $13,
			updated_at = $14
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, query,
		incident.ID,
		incident.Status,
		incident.AcknowledgedByID,
		incident.AcknowledgedAt,
		incident.ResolvedByID,
		incident.ResolvedAt,
		incident.ClosedAt,
		incident.ResponseSLAMet,
		incident.ResolutionSLAMet,
		incident.RootCauseCategory,
		incident.RootCauseDescription,
		incident.ResolutionSteps,
		incident.PreventiveActions,
		incident.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return incidents.ErrIncidentNotFound
	}

	if entry != nil {
		entry.IncidentID = incident.ID
		if err := insertTimelineEntry(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// AddTimelineEntry appends an entry to an incident timeline.
func (r *Repository) AddTimelineEntry(ctx context.Context, entry *domain.TimelineEntry) error {
	return insertTimelineEntry(ctx, r.db, entry)
}

func insertTimelineEntry(ctx context.Context, q querier, entry *domain.TimelineEntry) error {
	query := `
		INSERT INTO incident_timeline (incident_id, event_type, content, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := q.QueryRow(ctx, query,
		entry.IncidentID,
		entry.EventType,
		entry.Content,
		entry.ActorID,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("insert timeline entry: %w", err)
	}
	return nil
}

// ListTimeline returns timeline entries in insertion order.
func (r *Repository) ListTimeline(ctx context.Context, incidentID string) ([]domain.TimelineEntry, error) {
	query := `
		SELECT id, incident_id, event_type, content, actor_id, created_at
		FROM incident_timeline
		WHERE incident_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.TimelineEntry, 0)
	for rows.Next() {
		var e domain.TimelineEntry
		if err := rows.Scan(&e.ID, &e.IncidentID, &e.EventType, &e.Content, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan timeline entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline: %w", err)
	}
	return entries, nil
}
