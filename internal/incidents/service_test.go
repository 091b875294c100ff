package incidents

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository keeps incidents in memory and enforces the open-source uniqueness.
type mockRepository struct {
	mu        sync.Mutex
	incidents map[string]*domain.Incident
	timeline  map[string][]domain.TimelineEntry
	nextID    int

	// raceOnCreate simulates a concurrent insert winning the unique index.
	raceOnCreate *domain.Incident
	updateErr    error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		incidents: make(map[string]*domain.Incident),
		timeline:  make(map[string][]domain.TimelineEntry),
	}
}

func (m *mockRepository) GetIncident(_ context.Context, id string) (*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok {
		return nil, ErrIncidentNotFound
	}
	cp := *inc
	return &cp, nil
}

func (m *mockRepository) FindOpenBySource(_ context.Context, sourceType, sourceID string) ([]*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Incident
	for _, inc := range m.incidents {
		if inc.SourceType == sourceType && inc.SourceID == sourceID && !inc.Status.IsTerminal() {
			cp := *inc
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *mockRepository) CreateIncident(_ context.Context, incident *domain.Incident, entry *domain.TimelineEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.raceOnCreate != nil {
		winner := m.raceOnCreate
		m.raceOnCreate = nil
		m.incidents[winner.ID] = winner
		return ErrOpenIncidentExists
	}

	for _, inc := range m.incidents {
		if inc.SourceType == incident.SourceType && inc.SourceID == incident.SourceID && !inc.Status.IsTerminal() {
			return ErrOpenIncidentExists
		}
	}

	m.nextID++
	incident.ID = fmt.Sprintf("inc-%d", m.nextID)
	incident.Number = int64(m.nextID)
	cp := *incident
	m.incidents[incident.ID] = &cp

	entry.IncidentID = incident.ID
	m.timeline[incident.ID] = append(m.timeline[incident.ID], *entry)
	return nil
}

func (m *mockRepository) UpdateIncident(_ context.Context, incident *domain.Incident, entry *domain.TimelineEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.incidents[incident.ID]; !ok {
		return ErrIncidentNotFound
	}
	cp := *incident
	m.incidents[incident.ID] = &cp
	if entry != nil {
		entry.IncidentID = incident.ID
		m.timeline[incident.ID] = append(m.timeline[incident.ID], *entry)
	}
	return nil
}

func (m *mockRepository) AddTimelineEntry(_ context.Context, entry *domain.TimelineEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeline[entry.IncidentID] = append(m.timeline[entry.IncidentID], *entry)
	return nil
}

func (m *mockRepository) ListTimeline(_ context.Context, incidentID string) ([]domain.TimelineEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TimelineEntry(nil), m.timeline[incidentID]...), nil
}

func (m *mockRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.incidents)
}

// mockGateway records notification calls.
type mockGateway struct {
	mu       sync.Mutex
	created  []*domain.Incident
	resolved []*domain.Incident
	err      error
}

func (g *mockGateway) IncidentCreated(_ context.Context, incident *domain.Incident) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, incident)
	return g.err
}

func (g *mockGateway) IncidentResolved(_ context.Context, incident *domain.Incident) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resolved = append(g.resolved, incident)
	return g.err
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func checkDownInput(severity domain.IncidentSeverity) CreateInput {
	return CreateInput{
		OrganizationID: "org-1",
		SourceType:     domain.SourceTypeCheck,
		SourceID:       "check-1",
		ResourceName:   "api health",
		Title:          "Check DOWN: api health",
		Description:    "Unexpected status code: 503",
		Severity:       severity,
	}
}

func newTestService(t *testing.T) (*Service, *mockRepository, *mockGateway, *fakeClock) {
	t.Helper()
	repo := newMockRepository()
	gw := &mockGateway{}
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewService(repo, gw, WithClock(clock.Now)), repo, gw, clock
}

func TestService_CreateOrUpdate_New(t *testing.T) {
	svc, repo, gw, clock := newTestService(t)
	ctx := context.Background()

	inc, err := svc.CreateOrUpdate(ctx, checkDownInput(domain.SeverityCritical))
	require.NoError(t, err)

	assert.Equal(t, domain.IncidentStatusNew, inc.Status)
	assert.Equal(t, domain.PriorityUrgent, inc.Priority)
	assert.Equal(t, clock.Now(), inc.CreatedAt)
	assert.Equal(t, domain.DefaultResponseSLAMinutes, inc.ResponseSLAMinutes)
	assert.Equal(t, domain.DefaultResolutionSLAMinutes, inc.ResolutionSLAMinutes)
	assert.Equal(t, 1, repo.count())

	timeline, err := repo.ListTimeline(ctx, inc.ID)
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	assert.Equal(t, domain.TimelineCreated, timeline[0].EventType)
	assert.Contains(t, timeline[0].Content, "Check DOWN: api health")

	require.Len(t, gw.created, 1)
	assert.Equal(t, inc.ID, gw.created[0].ID)
}

func TestService_CreateOrUpdate_Deduplicates(t *testing.T) {
	svc, repo, gw, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateOrUpdate(ctx, checkDownInput(domain.SeverityHigh))
	require.NoError(t, err)

	second, err := svc.CreateOrUpdate(ctx, checkDownInput(domain.SeverityHigh))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.count())

	timeline, err := repo.ListTimeline(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, timeline, 2)
	assert.Equal(t, domain.TimelineCreated, timeline[0].EventType)
	assert.Equal(t, domain.TimelineStatusUpdate, timeline[1].EventType)
	assert.Equal(t, "Status update: Unexpected status code: 503", timeline[1].Content)

	assert.Len(t, gw.created, 1, "only the first trigger notifies")
}

func TestService_CreateOrUpdate_AfterResolveOpensNew(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateOrUpdate(ctx, checkDownInput(domain.SeverityHigh))
	require.NoError(t, err)
	require.NoError(t, svc.AutoResolve(ctx, domain.SourceTypeCheck, "check-1", "Check is back online"))

	second, err := svc.CreateOrUpdate(ctx, checkDownInput(domain.SeverityHigh))
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, repo.count())
}

func TestService_CreateOrUpdate_LostRace(t *testing.T) {
	svc, repo, gw, _ := newTestService(t)
	ctx := context.Background()

	winner := &domain.Incident{
		ID:         "winner",
		SourceType: domain.SourceTypeCheck,
		SourceID:   "check-1",
		Status:     domain.IncidentStatusNew,
	}
	repo.raceOnCreate = winner

	inc, err := svc.CreateOrUpdate(ctx, checkDownInput(domain.SeverityHigh))
	require.NoError(t, err)

	assert.Equal(t, "winner", inc.ID)
	assert.Equal(t, 1, repo.count())
	assert.Empty(t, gw.created)

	timeline, err := repo.ListTimeline(ctx, "winner")
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	assert.Equal(t, domain.TimelineStatusUpdate, timeline[0].EventType)
}

func TestService_CreateOrUpdate_ConcurrentSameSource(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateOrUpdate(ctx, checkDownInput(domain.SeverityHigh))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, repo.count())
}

func TestService_CreateOrUpdate_PriorityMap(t *testing.T) {
	tests := []struct {
		severity domain.IncidentSeverity
		priority domain.IncidentPriority
	}{
		{domain.SeverityCritical, domain.PriorityUrgent},
		{domain.SeverityHigh, domain.PriorityHigh},
		{domain.SeverityMedium, domain.PriorityMedium},
		{domain.SeverityLow, domain.PriorityLow},
		{domain.SeverityInfo, domain.PriorityLow},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			svc, _, _, _ := newTestService(t)
			inc, err := svc.CreateOrUpdate(context.Background(), checkDownInput(tt.severity))
			require.NoError(t, err)
			assert.Equal(t, tt.priority, inc.Priority)
		})
	}
}

func TestService_Acknowledge_ResponseSLA(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		wantMet bool
	}{
		{"within budget", 20 * time.Minute, true},
		{"over budget", 45 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _, clock := newTestService(t)
			ctx := context.Background()

			inc, err := svc.CreateOrUpdate(ctx, checkDownInput(domain.SeverityHigh))
			require.NoError(t, err)

			stored := repo.incidents[inc.ID]
			stored.ResponseSLAMinutes = 30

			clock.Advance(tt.elapsed)
			require.NoError(t, svc.Acknowledge(ctx, inc.ID, "user-1"))

			got, err := repo.GetIncident(ctx, inc.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.IncidentStatusAcknowledged, got.Status)
			require.NotNil(t, got.AcknowledgedByID)
			assert.Equal(t, "user-1", *got.AcknowledgedByID)
			require.NotNil(t, got.AcknowledgedAt)
			assert.Equal(t, clock.Now(), *got.AcknowledgedAt)
			require.NotNil(t, got.ResponseSLAMet)
			assert.Equal(t, tt.wantMet, *got.ResponseSLAMet)
		})
	}
}

func TestService_Acknowledge_ZeroBudgetLeavesFlagUnset(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	inc, err := svc.CreateOrUpdate(ctx, checkDownInput(domain.SeverityHigh))
	require.NoError(t, err)
	repo.incidents[inc.ID].ResponseSLAMinutes = 0

	require.NoError(t, svc.Acknowledge(ctx, inc.ID, "user-1"))

	got, _ := repo.GetIncident(ctx, inc.ID)
	assert.Nil(t, got.ResponseSLAMet)
}

func TestService_Acknowledge_Idempotent(t *testing.T) {
	svc, repo, _, clock := newTestService(t)
	ctx := context.Background()

	inc, err := svc.CreateOrUpdate(ctx, checkDownInput(domain.SeverityHigh))
	require.NoError(t, err)

	require.NoError(t, svc.Acknowledge(ctx, inc.ID, "user-1"))
	first, _ := repo.GetIncident(ctx, inc.ID)

	clock.Advance(time.Hour)
	require.NoError(t, svc.Acknowledge(ctx, inc.ID, "user-2"))
	second, _ := repo.GetIncident(ctx, inc.ID)

	assert.Equal(t, *first.AcknowledgedAt, *second.AcknowledgedAt)
	assert.Equal(t, "user-1", *second.AcknowledgedByID)

	timeline, _ := repo.ListTimeline(ctx, inc.ID)
	assert.Len(t, timeline, 2)
}

func TestService_Acknowledge_Resolved(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	inc, err := svc.CreateOrUpdate(ctx, checkDownInput(domain.SeverityHigh))
	require.NoError(t, err)
	require.NoError(t, svc.Resolve(ctx, inc.ID, "user-1", ResolveInput{}))

	err = svc.Acknowledge(ctx, inc.ID, "user-1")
	assert.ErrorIs(t, err, ErrIncidentClosed)
}

func TestService_Resolve(t *testing.T) {
	svc, repo, gw, clock := newTestService(t)
	ctx := context.Background()

	inc, err := svc.CreateOrUpdate(ctx, checkDownInput(domain.SeverityHigh))
	require.NoError(t, err)

	clock.Advance(5 * time.Hour)
	err = svc.Resolve(ctx, inc.ID, "user-1", ResolveInput{
		RootCauseCategory:    "network",
		RootCauseDescription: "upstream router failure",
		ResolutionSteps:      "rebooted router",
		PreventiveActions:    "add redundant uplink",
	})
	require.NoError(t, err)

	got, err := repo.GetIncident(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusResolved, got.Status)
	assert.Equal(t, "user-1", *got.ResolvedByID)
	assert.Equal(t, "network", got.RootCauseCategory)
	assert.Equal(t, "upstream router failure", got.RootCauseDescription)
	assert.Equal(t, "rebooted router", got.ResolutionSteps)
	assert.Equal(t, "add redundant uplink", got.PreventiveActions)
	require.NotNil(t, got.ResolutionSLAMet)
	assert.False(t, *got.ResolutionSLAMet, "5h exceeds the 240 minute budget")

	timeline, _ := repo.ListTimeline(ctx, inc.ID)
	require.Len(t, timeline, 2)
	assert.Equal(t, domain.TimelineResolved, timeline[1].EventType)
	assert.Equal(t, "Incident resolved: rebooted router", timeline[1].Content)

	require.Len(t, gw.resolved, 1)
}

func TestService_Resolve_AlreadyResolvedIsNoop(t *testing.T) {
	svc, repo, gw, _ := newTestService(t)
	ctx := context.Background()

	inc, err := svc.CreateOrUpdate(ctx, checkDownInput(domain.SeverityHigh))
	require.NoError(t, err)
	require.NoError(t, svc.Resolve(ctx, inc.ID, "user-1", ResolveInput{}))
	require.NoError(t, svc.Resolve(ctx, inc.ID, "user-1", ResolveInput{}))

	timeline, _ := repo.ListTimeline(ctx, inc.ID)
	assert.Len(t, timeline, 2)
	assert.Len(t, gw.resolved, 1)
}

func TestService_MissingIncidentIsNoop(t *testing.T) {
	svc, repo, gw, _ := newTestService(t)
	ctx := context.Background()

	assert.NoError(t, svc.Acknowledge(ctx, "missing", "user-1"))
	assert.NoError(t, svc.Resolve(ctx, "missing", "user-1", ResolveInput{}))
	assert.NoError(t, svc.AutoResolve(ctx, domain.SourceTypeHost, "missing", "Host is back online"))

	assert.Equal(t, 0, repo.count())
	assert.Empty(t, gw.resolved)
}

func TestService_AutoResolve(t *testing.T) {
	svc, repo, gw, _ := newTestService(t)
	ctx := context.Background()

	inc, err := svc.CreateOrUpdate(ctx, checkDownInput(domain.SeverityHigh))
	require.NoError(t, err)

	require.NoError(t, svc.AutoResolve(ctx, domain.SourceTypeCheck, "check-1", "Check is back online"))

	got, err := repo.GetIncident(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusResolved, got.Status)
	assert.Equal(t, "Check is back online", got.ResolutionSteps)
	assert.Nil(t, got.ResolvedByID)
	require.NotNil(t, got.ResolutionSLAMet)
	assert.True(t, *got.ResolutionSLAMet)

	timeline, _ := repo.ListTimeline(ctx, inc.ID)
	require.Len(t, timeline, 2)
	assert.Equal(t, domain.TimelineAutoResolved, timeline[1].EventType)
	assert.Contains(t, timeline[1].Content, "Check is back online")

	require.Len(t, gw.resolved, 1)

	// Subsequent recoveries find nothing to resolve and open nothing new.
	require.NoError(t, svc.AutoResolve(ctx, domain.SourceTypeCheck, "check-1", "Check is back online"))
	assert.Equal(t, 1, repo.count())
	assert.Len(t, gw.resolved, 1)
}

func TestService_AutoResolve_UpdateError(t *testing.T) {
	svc, repo, gw, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateOrUpdate(ctx, checkDownInput(domain.SeverityHigh))
	require.NoError(t, err)

	repo.updateErr = errors.New("connection reset")
	err = svc.AutoResolve(ctx, domain.SourceTypeCheck, "check-1", "Check is back online")
	require.Error(t, err)
	assert.Empty(t, gw.resolved)
}

func TestService_GatewayErrorDoesNotFail(t *testing.T) {
	svc, _, gw, _ := newTestService(t)
	gw.err = errors.New("queue unavailable")

	inc, err := svc.CreateOrUpdate(context.Background(), checkDownInput(domain.SeverityHigh))
	require.NoError(t, err)
	assert.NotEmpty(t, inc.ID)
}

func TestService_GetIncident(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	inc, err := svc.CreateOrUpdate(ctx, checkDownInput(domain.SeverityHigh))
	require.NoError(t, err)
	_, err = svc.CreateOrUpdate(ctx, checkDownInput(domain.SeverityHigh))
	require.NoError(t, err)

	got, err := svc.GetIncident(ctx, inc.ID)
	require.NoError(t, err)
	assert.Len(t, got.Timeline, 2)

	_, err = svc.GetIncident(ctx, "missing")
	assert.ErrorIs(t, err, ErrIncidentNotFound)
}
