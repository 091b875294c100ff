package heartbeat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
	"github.com/palmiyeitadmin/monitorsystem/internal/hosts"
	"github.com/palmiyeitadmin/monitorsystem/internal/incidents"
)

// mockHostRepository implements hosts.Repository in memory.
type mockHostRepository struct {
	mu sync.Mutex

	hosts    map[string]*domain.Host
	disks    map[string][]domain.HostDisk
	services []*domain.Service
	history  []domain.ServiceStatusHistory
	metrics  []domain.HostMetric

	lookupErr error
	updateErr error
	conflicts int

	// afterLookup runs once the host was read for a heartbeat.
	afterLookup func(hostID string)
	// beforeUpdate runs under the lock ahead of the status comparison.
	beforeUpdate func(stored *domain.Host, expected domain.Status)
}

func newMockHostRepository(hs ...*domain.Host) *mockHostRepository {
	m := &mockHostRepository{
		hosts: make(map[string]*domain.Host),
		disks: make(map[string][]domain.HostDisk),
	}
	for _, h := range hs {
		m.hosts[h.ID] = h
	}
	return m
}

func (m *mockHostRepository) CreateHost(_ context.Context, h *domain.Host) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hosts[h.ID] = h
	return nil
}

func (m *mockHostRepository) GetHost(_ context.Context, id string) (*domain.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hosts[id]
	if !ok {
		return nil, hosts.ErrHostNotFound
	}
	cp := *h
	return &cp, nil
}

func (m *mockHostRepository) GetByAPIKey(_ context.Context, apiKey string) (*domain.Host, error) {
	h, err := m.lookup(apiKey)
	if err == nil && m.afterLookup != nil {
		m.afterLookup(h.ID)
	}
	return h, err
}

func (m *mockHostRepository) lookup(apiKey string) (*domain.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	for _, h := range m.hosts {
		if h.APIKey == apiKey {
			cp := *h
			return &cp, nil
		}
	}
	return nil, hosts.ErrHostNotFound
}

func (m *mockHostRepository) UpdateHeartbeat(_ context.Context, h *domain.Host, expected domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.hosts[h.ID]
	if !ok {
		return hosts.ErrHostNotFound
	}
	if m.beforeUpdate != nil {
		m.beforeUpdate(stored, expected)
	}
	if stored.CurrentStatus != expected {
		m.conflicts++
		return hosts.ErrStatusConflict
	}
	cp := *h
	m.hosts[h.ID] = &cp
	return nil
}

// markDown flips the stored host to Down the way the silent-host sweep does.
func (m *mockHostRepository) markDown(id string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hosts[id].SetStatus(domain.StatusDown, at)
}

func (m *mockHostRepository) MarkDown(_ context.Context, _ *domain.Host, _ time.Time) (bool, error) {
	return false, nil
}

func (m *mockHostRepository) ListSilentHosts(_ context.Context, _ time.Time) ([]*domain.Host, error) {
	return nil, nil
}

func (m *mockHostRepository) ClearExpiredMaintenance(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (m *mockHostRepository) ReplaceDisks(_ context.Context, hostID string, disks []domain.HostDisk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disks[hostID] = append([]domain.HostDisk(nil), disks...)
	return nil
}

func (m *mockHostRepository) ListDisks(_ context.Context, hostID string) ([]domain.HostDisk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disks[hostID], nil
}

func (m *mockHostRepository) GetService(_ context.Context, hostID string, serviceType domain.ServiceType, name string) (*domain.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.services {
		if s.HostID == hostID && s.Type == serviceType && s.Name == name {
			cp := *s
			return &cp, nil
		}
	}
	return nil, hosts.ErrServiceNotFound
}

func (m *mockHostRepository) ListServices(_ context.Context, hostID string) ([]*domain.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Service
	for _, s := range m.services {
		if s.HostID == hostID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockHostRepository) CreateService(_ context.Context, s *domain.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = fmt.Sprintf("svc-%d", len(m.services)+1)
	cp := *s
	m.services = append(m.services, &cp)
	return nil
}

func (m *mockHostRepository) UpdateService(_ context.Context, s *domain.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.services {
		if existing.ID == s.ID {
			cp := *s
			m.services[i] = &cp
			return nil
		}
	}
	return hosts.ErrServiceNotFound
}

func (m *mockHostRepository) AddServiceHistory(_ context.Context, e *domain.ServiceStatusHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.history) + 1)
	m.history = append(m.history, *e)
	return nil
}

func (m *mockHostRepository) InsertMetric(_ context.Context, metric *domain.HostMetric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	metric.ID = int64(len(m.metrics) + 1)
	m.metrics = append(m.metrics, *metric)
	return nil
}

func (m *mockHostRepository) DeleteMetricsBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (m *mockHostRepository) DeleteServiceHistoryBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (m *mockHostRepository) host(id string) *domain.Host {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hosts[id]
}

func (m *mockHostRepository) addService(s *domain.Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, s)
}

// mockIncidentEngine records incident engine calls.
type mockIncidentEngine struct {
	mu       sync.Mutex
	created  []incidents.CreateInput
	resolved []string
}

func (m *mockIncidentEngine) CreateOrUpdate(_ context.Context, input incidents.CreateInput) (*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, input)
	return &domain.Incident{ID: "inc-1", SourceType: input.SourceType, SourceID: input.SourceID}, nil
}

func (m *mockIncidentEngine) AutoResolve(_ context.Context, sourceType, sourceID, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved = append(m.resolved, sourceType+"/"+sourceID+": "+note)
	return nil
}

// mockNotifier records host recovery notifications.
type mockNotifier struct {
	mu        sync.Mutex
	recovered []string
}

func (m *mockNotifier) HostRecovered(_ context.Context, h *domain.Host) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recovered = append(m.recovered, h.ID)
	return nil
}

// mockBroadcaster records host updates.
type mockBroadcaster struct {
	mu      sync.Mutex
	updates []domain.HostUpdate
}

func (m *mockBroadcaster) BroadcastHostUpdate(u domain.HostUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, u)
}
