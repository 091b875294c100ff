// Package checks schedules active probes and turns their results into
// check status transitions and incidents.
package checks

import (
	"context"
	"time"

	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
)

// Repository defines the interface for check data access.
type Repository interface {
	CreateCheck(ctx context.Context, check *domain.Check) error
	GetCheck(ctx context.Context, id string) (*domain.Check, error)
	// ListDueChecks returns active monitored checks whose interval elapsed at now.
	ListDueChecks(ctx context.Context, now time.Time) ([]*domain.Check, error)
	// SaveResult appends result and refreshes the check's last-result summary.
	SaveResult(ctx context.Context, result *domain.CheckResult) error
	UpdateStatus(ctx context.Context, checkID string, status domain.Status, at time.Time) error
	ListResults(ctx context.Context, checkID string, limit int) ([]domain.CheckResult, error)
	DeleteResultsBefore(ctx context.Context, before time.Time) (int64, error)
}
