//go:build integration

package app_test

import (
	"context"
	"net"
	"testing"

	"github.com/palmiyeitadmin/monitorsystem/internal/checks"
	checkspostgres "github.com/palmiyeitadmin/monitorsystem/internal/checks/postgres"
	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
	incidentspostgres "github.com/palmiyeitadmin/monitorsystem/internal/incidents/postgres"
	"github.com/palmiyeitadmin/monitorsystem/internal/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runTick runs one scheduler tick and waits for the started checks.
func runTick(t *testing.T, repo *checkspostgres.Repository) int {
	t.Helper()
	scheduler := checks.NewScheduler(
		checks.DefaultSchedulerConfig(),
		repo,
		probe.NewDefaultRegistry(probe.Config{}),
		checks.NewService(repo, newIncidentService()),
	)
	started := scheduler.Tick(context.Background())
	scheduler.Stop()
	return started
}

func TestScheduler_TCPCheckLifecycle(t *testing.T) {
	ctx := context.Background()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	repo := checkspostgres.NewRepository(testDB)
	check := &domain.Check{
		OrganizationID:    testOrgID,
		Name:              "postgres port",
		Type:              domain.CheckTypeTCP,
		Target:            "127.0.0.1",
		TCPPort:           &port,
		TimeoutSeconds:    2,
		IntervalSeconds:   60,
		MonitoringEnabled: true,
		IsActive:          true,
	}
	require.NoError(t, repo.CreateCheck(ctx, check))

	require.GreaterOrEqual(t, runTick(t, repo), 1)

	got, err := repo.GetCheck(ctx, check.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUp, got.CurrentStatus)
	require.NotNil(t, got.LastCheckAt)

	// Not due again until the interval elapses.
	due, err := repo.ListDueChecks(ctx, *got.LastCheckAt)
	require.NoError(t, err)
	for _, c := range due {
		assert.NotEqual(t, check.ID, c.ID)
	}

	require.NoError(t, ln.Close())
	_, err = testDB.Exec(ctx, `UPDATE checks SET last_check_at = NULL WHERE id = $1`, check.ID)
	require.NoError(t, err)

	runTick(t, repo)

	got, err = repo.GetCheck(ctx, check.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDown, got.CurrentStatus)

	open, err := incidentspostgres.NewRepository(testDB).FindOpenBySource(ctx, domain.SourceTypeCheck, check.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "Check DOWN: postgres port", open[0].Title)

	results, err := repo.ListResults(ctx, check.ID, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
}
