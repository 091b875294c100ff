package realtime

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/palmiyeitadmin/monitorsystem/internal/pkg/ctxlog"
)

// Handler upgrades HTTP requests to hub subscriptions.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler creates a handler. An empty allowedOrigins list accepts only
// same-origin requests; "*" accepts any origin.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// RegisterRoutes registers the WebSocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.Subscribe)
}

// Subscribe handles GET /ws?customer_id=...
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:         uuid.NewString(),
		customerID: r.URL.Query().Get("customer_id"),
		conn:       conn,
		send:       make(chan []byte, h.hub.sendBuffer),
	}
	h.hub.register(c)
	logger.Info("websocket client connected", "client_id", c.id, "customer_id", c.customerID)

	go c.writePump()
	go c.readPump(h.hub)
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] || set[origin] {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}
