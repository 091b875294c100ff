package incidents

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/palmiyeitadmin/monitorsystem/internal/pkg/httputil"
)

// Handler handles HTTP requests for incidents.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new incidents handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers read routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/incidents/{id}", h.GetIncident)
}

// RegisterOperatorRoutes registers lifecycle routes that require operator role.
func (h *Handler) RegisterOperatorRoutes(r chi.Router) {
	r.Post("/incidents/{id}/acknowledge", h.Acknowledge)
	r.Post("/incidents/{id}/resolve", h.Resolve)
}

// ResolveRequest represents the request body for resolving an incident.
type ResolveRequest struct {
	RootCauseCategory    string `json:"root_cause_category" validate:"max=100"`
	RootCauseDescription string `json:"root_cause_description" validate:"max=4000"`
	ResolutionSteps      string `json:"resolution_steps" validate:"max=4000"`
	PreventiveActions    string `json:"preventive_actions" validate:"max=4000"`
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrIncidentNotFound, Status: http.StatusNotFound},
	{Error: ErrIncidentClosed, Status: http.StatusConflict},
}

// GetIncident handles GET /incidents/{id}.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := h.service.GetIncident(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, incident)
}

// Acknowledge handles POST /incidents/{id}/acknowledge.
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	if err := h.service.Acknowledge(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.NoContent(w)
}

// Resolve handles POST /incidents/{id}/resolve.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !httputil.DecodeJSON(w, r, &req, true) {
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	userID := httputil.GetUserID(r.Context())
	err := h.service.Resolve(r.Context(), chi.URLParam(r, "id"), userID, ResolveInput{
		RootCauseCategory:    req.RootCauseCategory,
		RootCauseDescription: req.RootCauseDescription,
		ResolutionSteps:      req.ResolutionSteps,
		PreventiveActions:    req.PreventiveActions,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.NoContent(w)
}
