package heartbeat

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/palmiyeitadmin/monitorsystem/internal/pkg/ctxlog"
	"github.com/palmiyeitadmin/monitorsystem/internal/pkg/httputil"
)

// APIKeyHeader carries the agent API key.
const APIKeyHeader = "X-API-Key"

// Handler handles agent HTTP requests.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new heartbeat handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers agent routes. They authenticate with the host API
// key and must be mounted outside the operator auth middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/agent/heartbeat", h.Heartbeat)
}

// Heartbeat handles POST /agent/heartbeat. The key is checked before the
// body is read.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	apiKey := apiKeyFromRequest(r)
	if apiKey == "" {
		httputil.Error(w, http.StatusUnauthorized, "missing api key")
		return
	}

	host, err := h.service.Authenticate(r.Context(), apiKey)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var report Report
	if !httputil.DecodeJSON(w, r, &report, false) {
		return
	}
	if err := h.validator.Struct(report); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	resp, err := h.service.Apply(r.Context(), host, &report)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, resp)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrUnauthorized) {
		httputil.Error(w, http.StatusUnauthorized, err.Error())
		return
	}
	ctxlog.FromContext(r.Context()).Error("heartbeat processing failed", "error", err)
	httputil.Error(w, http.StatusInternalServerError, "heartbeat processing failed")
}

func apiKeyFromRequest(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		return key
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}
