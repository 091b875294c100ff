// Package postgres provides PostgreSQL implementation of checks repository.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/palmiyeitadmin/monitorsystem/internal/checks"
	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
)

// Repository implements checks.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const checkColumns = `
	id, organization_id, customer_id, host_id, name, check_type, target,
	http_method, expected_status_code, expected_keyword, keyword_should_exist,
	request_headers, request_body, follow_redirects, tcp_port,
	monitor_ssl, ssl_expiry_warning_days, timeout_seconds, interval_seconds,
	current_status, last_check_at, last_response_time_ms, last_status_code, last_error_message,
	ssl_expiry_date, ssl_days_remaining, monitoring_enabled, is_active, created_at, updated_at
`

func scanCheck(row pgx.Row) (*domain.Check, error) {
	var c domain.Check
	var headers []byte
	err := row.Scan(
		&c.ID,
		&c.OrganizationID,
		&c.CustomerID,
		&c.HostID,
		&c.Name,
		&c.Type,
		&c.Target,
		&c.HTTPMethod,
		&c.ExpectedStatusCode,
		&c.ExpectedKeyword,
		&c.KeywordShouldExist,
		&headers,
		&c.RequestBody,
		&c.FollowRedirects,
		&c.TCPPort,
		&c.MonitorSSL,
		&c.SSLExpiryWarningDays,
		&c.TimeoutSeconds,
		&c.IntervalSeconds,
		&c.CurrentStatus,
		&c.LastCheckAt,
		&c.LastResponseTimeMs,
		&c.LastStatusCode,
		&c.LastErrorMessage,
		&c.SSLExpiryDate,
		&c.SSLDaysRemaining,
		&c.MonitoringEnabled,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &c.RequestHeaders); err != nil {
			return nil, fmt.Errorf("unmarshal request headers: %w", err)
		}
	}
	return &c, nil
}

// CreateCheck inserts a check definition.
func (r *Repository) CreateCheck(ctx context.Context, c *domain.Check) error {
	var headers []byte
	if len(c.RequestHeaders) > 0 {
		var err error
		if headers, err = json.Marshal(c.RequestHeaders); err != nil {
			return fmt.Errorf("marshal request headers: %w", err)
		}
	}
	if c.HTTPMethod == "" {
		c.HTTPMethod = "GET"
	}
	if c.ExpectedStatusCode == 0 {
		c.ExpectedStatusCode = 200
	}
	if c.CurrentStatus == "" {
		c.CurrentStatus = domain.StatusUnknown
	}

	query := `
		INSERT INTO checks (
			organization_id, customer_id, host_id, name, check_type, target,
			http_method, expected_status_code, expected_keyword, keyword_should_exist,
			request_headers, request_body, follow_redirects, tcp_port,
			monitor_ssl, ssl_expiry_warning_days, timeout_seconds, interval_seconds,
			current_status, monitoring_enabled, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		c.OrganizationID,
		c.CustomerID,
		c.HostID,
		c.Name,
		c.Type,
		c.Target,
		c.HTTPMethod,
		c.ExpectedStatusCode,
		c.ExpectedKeyword,
		c.KeywordShouldExist,
		headers,
		c.RequestBody,
		c.FollowRedirects,
		c.TCPPort,
		c.MonitorSSL,
		c.SSLExpiryWarningDays,
		c.TimeoutSeconds,
		c.IntervalSeconds,
		c.CurrentStatus,
		c.MonitoringEnabled,
		c.IsActive,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create check: %w", err)
	}
	return nil
}

// GetCheck retrieves a check by ID.
func (r *Repository) GetCheck(ctx context.Context, id string) (*domain.Check, error) {
	query := `SELECT ` + checkColumns + ` FROM checks WHERE id = $1`
	c, err := scanCheck(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checks.ErrCheckNotFound
		}
		return nil, fmt.Errorf("get check: %w", err)
	}
	return c, nil
}

// ListDueChecks returns checks that never ran or whose interval has elapsed.
func (r *Repository) ListDueChecks(ctx context.Context, now time.Time) ([]*domain.Check, error) {
	query := `SELECT ` + checkColumns + `
		FROM checks
		WHERE is_active AND monitoring_enabled
		  AND (last_check_at IS NULL
		       OR last_check_at + make_interval(secs => interval_seconds) <= $1)
		ORDER BY last_check_at NULLS FIRST
	`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list due checks: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.Check, 0)
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checks: %w", err)
	}
	return result, nil
}

// SaveResult inserts the result and updates the summary columns in one transaction.
func (r *Repository) SaveResult(ctx context.Context, result *domain.CheckResult) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	insert := `
		INSERT INTO check_results (
			check_id, status, response_time_ms, status_code, error_message, response_body,
			ssl_expiry_date, ssl_days_remaining, started_at, checked_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err = tx.QueryRow(ctx, insert,
		result.CheckID,
		result.Status,
		result.ResponseTimeMs,
		result.StatusCode,
		result.ErrorMessage,
		result.ResponseBody,
		result.SSLExpiryDate,
		result.SSLDaysRemaining,
		result.StartedAt,
		result.CheckedAt,
	).Scan(&result.ID)
	if err != nil {
		return fmt.Errorf("insert check result: %w", err)
	}

	update := `
		UPDATE checks SET
			last_check_at = $2,
			last_response_time_ms = $3,
			last_status_code = $4,
			last_error_message = $5,
			ssl_expiry_date = COALESCE($6, ssl_expiry_date),
			ssl_days_remaining = COALESCE($7, ssl_days_remaining),
			updated_at = $2
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, update,
		result.CheckID,
		result.CheckedAt,
		result.ResponseTimeMs,
		result.StatusCode,
		result.ErrorMessage,
		result.SSLExpiryDate,
		result.SSLDaysRemaining,
	)
	if err != nil {
		return fmt.Errorf("update check summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return checks.ErrCheckNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// UpdateStatus sets the check's current status.
func (r *Repository) UpdateStatus(ctx context.Context, checkID string, status domain.Status, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE checks SET current_status = $2, updated_at = $3 WHERE id = $1`,
		checkID, status, at,
	)
	if err != nil {
		return fmt.Errorf("update check status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return checks.ErrCheckNotFound
	}
	return nil
}

// ListResults returns the most recent results for a check, newest first.
func (r *Repository) ListResults(ctx context.Context, checkID string, limit int) ([]domain.CheckResult, error) {
	query := `
		SELECT id, check_id, status, response_time_ms, status_code, error_message, response_body,
			ssl_expiry_date, ssl_days_remaining, started_at, checked_at
		FROM check_results
		WHERE check_id = $1
		ORDER BY checked_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, checkID, limit)
	if err != nil {
		return nil, fmt.Errorf("list check results: %w", err)
	}
	defer rows.Close()

	results := make([]domain.CheckResult, 0)
	for rows.Next() {
		var cr domain.CheckResult
		err := rows.Scan(&cr.ID, &cr.CheckID, &cr.Status, &cr.ResponseTimeMs, &cr.StatusCode,
			&cr.ErrorMessage, &cr.ResponseBody, &cr.SSLExpiryDate, &cr.SSLDaysRemaining,
			&cr.StartedAt, &cr.CheckedAt)
		if err != nil {
			return nil, fmt.Errorf("scan check result: %w", err)
		}
		results = append(results, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate check results: %w", err)
	}
	return results, nil
}

// DeleteResultsBefore removes results checked before the cutoff.
func (r *Repository) DeleteResultsBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM check_results WHERE checked_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete check results: %w", err)
	}
	return tag.RowsAffected(), nil
}
