package heartbeat

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
	"github.com/palmiyeitadmin/monitorsystem/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const openAPISpec = "../../api/openapi/openapi.yaml"

func newTestRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", NewHandler(svc).RegisterRoutes)
	return r
}

func TestHandler_Heartbeat(t *testing.T) {
	validator := testutil.NewOpenAPIValidator(t, openAPISpec)

	validBody := `{
		"agent_version": "1.4.0",
		"system": {"hostname": "web-01", "cpu_percent": 10, "ram_percent": 20},
		"disks": [{"name": "/dev/sda1", "used_percent": 30}],
		"services": [{"name": "nginx.service", "type": "SystemdUnit", "status": "Running"}]
	}`

	tests := []struct {
		name       string
		headers    map[string]string
		body       string
		wantStatus int
	}{
		{
			name:       "api key header",
			headers:    map[string]string{APIKeyHeader: testAPIKey},
			body:       validBody,
			wantStatus: http.StatusOK,
		},
		{
			name:       "bearer api key",
			headers:    map[string]string{"Authorization": "Bearer " + testAPIKey},
			body:       validBody,
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing key",
			body:       validBody,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown key",
			headers:    map[string]string{APIKeyHeader: "mk_nope"},
			body:       validBody,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown key with invalid json",
			headers:    map[string]string{APIKeyHeader: "mk_nope"},
			body:       `{"system":`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing key with invalid body",
			body:       `{"system": {"cpu_percent": 140}}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "invalid json",
			headers:    map[string]string{APIKeyHeader: testAPIKey},
			body:       `{"system":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "cpu out of range",
			headers:    map[string]string{APIKeyHeader: testAPIKey},
			body:       `{"system": {"cpu_percent": 140}}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "disk without name",
			headers:    map[string]string{APIKeyHeader: testAPIKey},
			body:       `{"disks": [{"used_percent": 10}]}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(newTestHost(domain.StatusUp))
			router := newTestRouter(env.svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/agent/heartbeat", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			resp := rec.Result()
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			validator.ValidateResponse(t, req, resp)

			if tt.wantStatus == http.StatusOK {
				var body Response
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.True(t, body.Success)
				assert.Equal(t, "host-1", body.HostID)
				assert.Equal(t, 60, body.NextCheckInSeconds)
			}
		})
	}
}

func TestHandler_HeartbeatProcessingError(t *testing.T) {
	env := newTestEnv(newTestHost(domain.StatusUp))
	env.repo.updateErr = errors.New("connection reset")
	router := newTestRouter(env.svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/agent/heartbeat", strings.NewReader(`{}`))
	req.Header.Set(APIKeyHeader, testAPIKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "heartbeat processing failed")
	assert.NotContains(t, rec.Body.String(), "connection reset")
}
