// Package realtime pushes host status updates to WebSocket subscribers.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
)

// Message types.
const (
	MessageHostUpdate = "host_update"
)

// DefaultSendBuffer is the per-client outbound queue length.
const DefaultSendBuffer = 64

// Message is the envelope written to subscribers.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans host updates out to connected clients. Clients that subscribed
// with a customer id only receive updates for hosts of that customer.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*client]struct{}
	sendBuffer int
}

// NewHub creates a hub. A non-positive sendBuffer selects DefaultSendBuffer.
func NewHub(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Hub{
		clients:    make(map[*client]struct{}),
		sendBuffer: sendBuffer,
	}
}

// BroadcastHostUpdate queues update for every matching client. Clients whose
// queue is full are disconnected.
func (h *Hub) BroadcastHostUpdate(update domain.HostUpdate) {
	payload, err := json.Marshal(Message{Type: MessageHostUpdate, Data: update})
	if err != nil {
		slog.Error("failed to encode host update", "host_id", update.HostID, "error", err)
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		if !c.wants(update.CustomerID) {
			continue
		}
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	messagesSent.WithLabelValues(MessageHostUpdate).Inc()
	for _, c := range slow {
		slog.Warn("dropping slow websocket client", "client_id", c.id)
		h.unregister(c)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
	connectedClients.Set(0)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	connectedClients.Set(float64(n))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.close()
		connectedClients.Set(float64(n))
	}
}
