//go:build integration

package app_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
	"github.com/palmiyeitadmin/monitorsystem/internal/incidents"
	incidentspostgres "github.com/palmiyeitadmin/monitorsystem/internal/incidents/postgres"
	"github.com/palmiyeitadmin/monitorsystem/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIncidentService() *incidents.Service {
	return incidents.NewService(incidentspostgres.NewRepository(testDB), nil)
}

func checkDown(sourceID string) incidents.CreateInput {
	return incidents.CreateInput{
		OrganizationID: testOrgID,
		SourceType:     domain.SourceTypeCheck,
		SourceID:       sourceID,
		ResourceName:   "api health",
		Title:          "Check DOWN: api health",
		Description:    "connection refused",
		Severity:       domain.SeverityHigh,
	}
}

func TestIncidents_ConcurrentTriggersShareOneIncident(t *testing.T) {
	ctx := context.Background()
	svc := newIncidentService()
	sourceID := uuid.NewString()

	const triggers = 8
	ids := make([]string, triggers)
	var wg sync.WaitGroup
	for i := range triggers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inc, err := svc.CreateOrUpdate(ctx, checkDown(sourceID))
			if assert.NoError(t, err) {
				ids[i] = inc.ID
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	inc, err := svc.GetIncident(ctx, ids[0])
	require.NoError(t, err)
	require.Len(t, inc.Timeline, triggers)
	assert.Equal(t, domain.TimelineCreated, inc.Timeline[0].EventType)
	for _, e := range inc.Timeline[1:] {
		assert.Equal(t, domain.TimelineStatusUpdate, e.EventType)
	}
}

func TestIncidents_ResolvedSourceGetsNewIncident(t *testing.T) {
	ctx := context.Background()
	svc := newIncidentService()
	sourceID := uuid.NewString()

	first, err := svc.CreateOrUpdate(ctx, checkDown(sourceID))
	require.NoError(t, err)
	require.NoError(t, svc.AutoResolve(ctx, domain.SourceTypeCheck, sourceID, "Check is back online"))

	second, err := svc.CreateOrUpdate(ctx, checkDown(sourceID))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Greater(t, second.Number, first.Number)
}

func TestIncidents_API(t *testing.T) {
	ctx := context.Background()
	inc, err := newIncidentService().CreateOrUpdate(ctx, checkDown(uuid.NewString()))
	require.NoError(t, err)

	path := "/api/v1/incidents/" + inc.ID
	operator := operatorClient(t)

	t.Run("requires token", func(t *testing.T) {
		resp := newTestClient(t).GET(path)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("viewer cannot acknowledge", func(t *testing.T) {
		viewer := newTestClient(t).WithToken(issueToken(t, domain.RoleViewer))
		resp := viewer.POST(path+"/acknowledge", nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("get", func(t *testing.T) {
		resp := operator.GET(path)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Data domain.Incident `json:"data"`
		}
		testutil.DecodeJSON(t, resp, &body)
		assert.Equal(t, inc.ID, body.Data.ID)
		assert.Equal(t, domain.IncidentStatusNew, body.Data.Status)
		assert.Equal(t, domain.PriorityHigh, body.Data.Priority)
		assert.Len(t, body.Data.Timeline, 1)
	})

	t.Run("unknown id", func(t *testing.T) {
		resp := operator.GET("/api/v1/incidents/" + uuid.NewString())
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		_ = resp.Body.Close()

		resp = operator.POST("/api/v1/incidents/not-a-uuid/acknowledge", nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("acknowledge then resolve", func(t *testing.T) {
		resp := operator.POST(path+"/acknowledge", nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		_ = resp.Body.Close()

		resp = operator.POST(path+"/resolve", map[string]string{
			"root_cause_category": "network",
			"resolution_steps":    "restarted the load balancer",
		})
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		_ = resp.Body.Close()

		got, err := newIncidentService().GetIncident(ctx, inc.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.IncidentStatusResolved, got.Status)
		require.NotNil(t, got.ResponseSLAMet)
		assert.True(t, *got.ResponseSLAMet)
		require.NotNil(t, got.ResolutionSLAMet)
		assert.True(t, *got.ResolutionSLAMet)
		assert.Equal(t, "network", got.RootCauseCategory)

		events := make([]string, 0, len(got.Timeline))
		for _, e := range got.Timeline {
			events = append(events, e.EventType)
		}
		assert.Equal(t, []string{domain.TimelineCreated, domain.TimelineAcknowledged, domain.TimelineResolved}, events)
	})

	t.Run("acknowledge resolved conflicts", func(t *testing.T) {
		resp := operator.POST(path+"/acknowledge", nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		_ = resp.Body.Close()
	})
}
