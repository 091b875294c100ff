// Package hosts stores agent-reporting hosts together with their disks,
// services and metric history.
package hosts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
)

// Repository defines the interface for host data access.
type Repository interface {
	CreateHost(ctx context.Context, host *domain.Host) error
	GetHost(ctx context.Context, id string) (*domain.Host, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*domain.Host, error)
	// UpdateHeartbeat persists the fields an agent heartbeat refreshes. It
	// returns ErrStatusConflict when the stored status is no longer expected.
	UpdateHeartbeat(ctx context.Context, host *domain.Host, expected domain.Status) error
	// MarkDown flips a silent host to Down unless a heartbeat newer than
	// silentSince arrived in the meantime. It reports whether the row changed.
	MarkDown(ctx context.Context, host *domain.Host, silentSince time.Time) (bool, error)
	ListSilentHosts(ctx context.Context, lastSeenBefore time.Time) ([]*domain.Host, error)
	ClearExpiredMaintenance(ctx context.Context, now time.Time) (int64, error)

	ReplaceDisks(ctx context.Context, hostID string, disks []domain.HostDisk) error
	ListDisks(ctx context.Context, hostID string) ([]domain.HostDisk, error)

	GetService(ctx context.Context, hostID string, serviceType domain.ServiceType, name string) (*domain.Service, error)
	ListServices(ctx context.Context, hostID string) ([]*domain.Service, error)
	CreateService(ctx context.Context, service *domain.Service) error
	UpdateService(ctx context.Context, service *domain.Service) error
	AddServiceHistory(ctx context.Context, entry *domain.ServiceStatusHistory) error

	InsertMetric(ctx context.Context, metric *domain.HostMetric) error
	DeleteMetricsBefore(ctx context.Context, before time.Time) (int64, error)
	DeleteServiceHistoryBefore(ctx context.Context, before time.Time) (int64, error)
}

// GenerateAPIKey returns a new random agent API key.
func GenerateAPIKey() string {
	a, b := uuid.New(), uuid.New()
	sum := sha256.Sum256(append(a[:], b[:]...))
	return "mk_" + hex.EncodeToString(sum[:])
}
