//go:build integration

package app_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
	"github.com/palmiyeitadmin/monitorsystem/internal/heartbeat"
	hostspostgres "github.com/palmiyeitadmin/monitorsystem/internal/hosts/postgres"
	incidentspostgres "github.com/palmiyeitadmin/monitorsystem/internal/incidents/postgres"
	notificationspostgres "github.com/palmiyeitadmin/monitorsystem/internal/notifications/postgres"
	"github.com/palmiyeitadmin/monitorsystem/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func heartbeatReport(nginxStatus string) map[string]any {
	return map[string]any{
		"agent_version": "1.4.0",
		"system": map[string]any{
			"hostname":    "web-01",
			"os_type":     "linux",
			"cpu_percent": 12.5,
			"ram_percent": 40,
		},
		"disks": []map[string]any{
			{"name": "/dev/sda1", "mount_point": "/", "total_gb": 100, "used_gb": 35, "used_percent": 35},
		},
		"services": []map[string]any{
			{"name": "nginx.service", "display_name": "nginx", "type": "SystemdUnit", "status": nginxStatus},
		},
	}
}

func TestHeartbeat_UpdatesHost(t *testing.T) {
	ctx := context.Background()
	host := registerHost(t, "hb-updates")

	resp := newTestClient(t).WithAPIKey(host.APIKey).POST("/api/v1/agent/heartbeat", heartbeatReport("Running"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body heartbeat.Response
	testutil.DecodeJSON(t, resp, &body)
	assert.True(t, body.Success)
	assert.Equal(t, host.ID, body.HostID)
	assert.Equal(t, 60, body.NextCheckInSeconds)

	repo := hostspostgres.NewRepository(testDB)
	got, err := repo.GetHost(ctx, host.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUp, got.CurrentStatus)
	assert.Equal(t, "web-01", got.Hostname)
	require.NotNil(t, got.LastSeenAt)
	require.NotNil(t, got.CPUPercent)
	assert.InDelta(t, 12.5, *got.CPUPercent, 0.001)

	disks, err := repo.ListDisks(ctx, host.ID)
	require.NoError(t, err)
	require.Len(t, disks, 1)
	assert.InDelta(t, 65, disks[0].FreeGB, 0.001)

	services, err := repo.ListServices(ctx, host.ID)
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, domain.ServiceTypeSystemdUnit, services[0].Type)
	assert.Equal(t, domain.StatusUp, services[0].CurrentStatus)
}

func TestHeartbeat_Unauthorized(t *testing.T) {
	client := newTestClient(t)

	resp := client.POST("/api/v1/agent/heartbeat", heartbeatReport("Running"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	resp = client.WithAPIKey("mk_unknown").POST("/api/v1/agent/heartbeat", heartbeatReport("Running"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestHeartbeat_StoppedServiceRaisesAndResolvesIncident(t *testing.T) {
	ctx := context.Background()
	host := registerHost(t, "hb-service")
	agent := newTestClient(t).WithAPIKey(host.APIKey)

	post := func(status string) {
		t.Helper()
		resp := agent.POST("/api/v1/agent/heartbeat", heartbeatReport(status))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	}

	post("Running")
	post("Stopped")

	services, err := hostspostgres.NewRepository(testDB).ListServices(ctx, host.ID)
	require.NoError(t, err)
	require.Len(t, services, 1)
	serviceID := services[0].ID
	assert.Equal(t, domain.StatusDown, services[0].CurrentStatus)

	incidents := incidentspostgres.NewRepository(testDB)
	open, err := incidents.FindOpenBySource(ctx, domain.SourceTypeService, serviceID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "Service Stopped: nginx", open[0].Title)
	assert.Equal(t, domain.SeverityHigh, open[0].Severity)

	// Still stopped: no second incident.
	post("Stopped")
	open, err = incidents.FindOpenBySource(ctx, domain.SourceTypeService, serviceID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	incidentID := open[0].ID

	post("Running")

	got, err := incidents.GetIncident(ctx, incidentID)
	require.NoError(t, err)
	assert.Equal(t, domain.IncidentStatusResolved, got.Status)
	assert.Equal(t, heartbeat.ServiceRecoveryNote, got.ResolutionSteps)

	stats, err := notificationspostgres.NewRepository(testDB).GetQueueStats(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Pending, int64(2), "created and resolved notifications are queued")
}

func TestHeartbeat_RecoversDownHost(t *testing.T) {
	ctx := context.Background()
	host := registerHost(t, "hb-recover")

	_, err := testDB.Exec(ctx,
		`UPDATE hosts SET current_status = 'down', last_seen_at = $2 WHERE id = $1`,
		host.ID, time.Now().Add(-10*time.Minute))
	require.NoError(t, err)

	resp := newTestClient(t).WithAPIKey(host.APIKey).POST("/api/v1/agent/heartbeat", heartbeatReport("Running"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	got, err := hostspostgres.NewRepository(testDB).GetHost(ctx, host.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUp, got.CurrentStatus)
	require.NotNil(t, got.PreviousStatus)
	assert.Equal(t, domain.StatusDown, *got.PreviousStatus)
}
