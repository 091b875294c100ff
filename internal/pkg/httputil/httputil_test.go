package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body struct {
		Error ErrorBody `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name       string
		body       string
		allowEmpty bool
		wantOK     bool
		wantStatus int
		wantMsg    string
		wantName   string
	}{
		{
			name:     "valid",
			body:     `{"name":"web-01"}`,
			wantOK:   true,
			wantName: "web-01",
		},
		{
			name:       "empty allowed",
			allowEmpty: true,
			wantOK:     true,
		},
		{
			name:       "empty rejected",
			wantStatus: http.StatusBadRequest,
			wantMsg:    "invalid json",
		},
		{
			name:       "malformed",
			body:       `{"name":`,
			allowEmpty: true,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "invalid json",
		},
		{
			name:       "too large",
			body:       `{"name":"` + strings.Repeat("a", MaxBodyBytes) + `"}`,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantMsg:    "request body too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var dst payload
			ok := DecodeJSON(rec, req, &dst, tt.allowEmpty)

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantName, dst.Name)
				assert.Zero(t, rec.Body.Len())
				return
			}
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, decodeError(t, rec).Message)
		})
	}
}

func TestHandleError(t *testing.T) {
	errMissing := errors.New("thing not found")
	errBusy := errors.New("thing busy")
	mappings := []ErrorMapping{
		{Error: errMissing, Status: http.StatusNotFound},
		{Error: errBusy, Status: http.StatusConflict, Message: "try again later"},
	}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
		wantEmpty  bool
	}{
		{
			name:       "mapped uses error text",
			err:        fmt.Errorf("lookup: %w", errMissing),
			wantStatus: http.StatusNotFound,
			wantMsg:    "lookup: thing not found",
		},
		{
			name:       "mapped with message",
			err:        errBusy,
			wantStatus: http.StatusConflict,
			wantMsg:    "try again later",
		},
		{
			name:       "unmapped",
			err:        errors.New("connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "internal error",
		},
		{
			name:      "cancelled",
			err:       fmt.Errorf("query: %w", context.Canceled),
			wantEmpty: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleError(context.Background(), rec, tt.err, mappings)

			if tt.wantEmpty {
				assert.Zero(t, rec.Body.Len())
				return
			}
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, decodeError(t, rec).Message)
		})
	}
}

func TestValidationError(t *testing.T) {
	type input struct {
		Name     string `validate:"required"`
		Severity string `validate:"omitempty,oneof=low high"`
	}

	t.Run("field errors", func(t *testing.T) {
		err := validator.New().Struct(input{Severity: "medium"})
		require.Error(t, err)

		rec := httptest.NewRecorder()
		ValidationError(rec, err)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var body struct {
			Error struct {
				Message string       `json:"message"`
				Details []FieldError `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "validation error", body.Error.Message)
		assert.ElementsMatch(t, []FieldError{
			{Field: "input.Name", Message: "required"},
			{Field: "input.Severity", Message: "oneof"},
		}, body.Error.Details)
	})

	t.Run("plain error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ValidationError(rec, errors.New("bad input"))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "bad input", decodeError(t, rec).Details)
	})
}

func TestRequestLogLevel(t *testing.T) {
	tests := []struct {
		path   string
		status int
		want   slog.Level
	}{
		{"/api/v1/incidents/1", http.StatusOK, slog.LevelInfo},
		{"/healthz", http.StatusOK, slog.LevelDebug},
		{"/readyz", http.StatusServiceUnavailable, slog.LevelError},
		{"/api/v1/heartbeat", http.StatusUnauthorized, slog.LevelWarn},
		{"/api/v1/incidents/1", http.StatusInternalServerError, slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%d", tt.path, tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, requestLogLevel(tt.path, tt.status))
		})
	}
}

type stubValidator struct {
	userID string
	role   domain.Role
	err    error
	token  string
}

func (s *stubValidator) ValidateToken(_ context.Context, token string) (string, domain.Role, error) {
	s.token = token
	return s.userID, s.role, s.err
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		upgrade    bool
		query      string
		validErr   error
		wantStatus int
		wantToken  string
	}{
		{
			name:       "bearer token",
			header:     "Bearer abc",
			wantStatus: http.StatusOK,
			wantToken:  "abc",
		},
		{
			name:       "missing header",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong scheme",
			header:     "Basic abc",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "invalid token",
			header:     "Bearer abc",
			validErr:   errors.New("expired"),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "query token on upgrade",
			upgrade:    true,
			query:      "?access_token=ws-token",
			wantStatus: http.StatusOK,
			wantToken:  "ws-token",
		},
		{
			name:       "query token ignored without upgrade",
			query:      "?access_token=ws-token",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &stubValidator{userID: "user-1", role: domain.RoleViewer, err: tt.validErr}

			var gotUser string
			var gotRole domain.Role
			h := AuthMiddleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = GetUserID(r.Context())
				gotRole = GetRole(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/ws"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.upgrade {
				req.Header.Set("Upgrade", "websocket")
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantToken, v.token)
				assert.Equal(t, "user-1", gotUser)
				assert.Equal(t, domain.RoleViewer, gotRole)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		role       any
		wantStatus int
	}{
		{"admin passes", domain.RoleAdmin, http.StatusOK},
		{"operator passes", domain.RoleOperator, http.StatusOK},
		{"viewer forbidden", domain.RoleViewer, http.StatusForbidden},
		{"no role", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequireRole(domain.RoleOperator)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.role != nil {
				req = req.WithContext(context.WithValue(req.Context(), RoleKey, tt.role))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware([]string{"https://ops.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://ops.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://ops.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://ops.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
	})
}
