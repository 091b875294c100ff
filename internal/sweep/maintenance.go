package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/palmiyeitadmin/monitorsystem/internal/pkg/ctxlog"
)

// MaintenanceStore ends expired maintenance windows.
type MaintenanceStore interface {
	ClearExpiredMaintenance(ctx context.Context, now time.Time) (int64, error)
}

// MaintenanceExpiry takes hosts out of maintenance once their window ends.
type MaintenanceExpiry struct {
	store MaintenanceStore
	now   func() time.Time
}

// NewMaintenanceExpiry creates the maintenance expiry job.
func NewMaintenanceExpiry(store MaintenanceStore) *MaintenanceExpiry {
	return &MaintenanceExpiry{store: store, now: time.Now}
}

// Name implements Job.
func (m *MaintenanceExpiry) Name() string { return "maintenance_expiry" }

// Run implements Job.
func (m *MaintenanceExpiry) Run(ctx context.Context) error {
	n, err := m.store.ClearExpiredMaintenance(ctx, m.now())
	if err != nil {
		return fmt.Errorf("clear expired maintenance: %w", err)
	}
	if n > 0 {
		ctxlog.FromContext(ctx).Info("maintenance windows ended", "hosts", n)
	}
	return nil
}
