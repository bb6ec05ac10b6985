package web

import (
	"sync"

	"github.com/codefionn/promptloop/internal/logger"
)

// Hub fans run progress, run outcomes and PRD-change events out to every
// connected dashboard. A dashboard that stops draining its send queue is
// dropped; broadcasting must never stall the loop's reporting path.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *WebMessage
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	done       chan struct{}
}

// NewHub creates a hub with no connected dashboards
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *WebMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until Stop is called. Only Run
// touches the clients map directly; everything else goes through channels.
func (h *Hub) Run() {
	logger.Info("Dashboard hub started")
	defer logger.Info("Dashboard hub stopped")

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Debug("Dashboard connected: %s", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			logger.Debug("Dashboard disconnected: %s", client.ID)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Send queue full: the dashboard stopped reading.
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			return
		}
	}
}

// Stop terminates the hub's event loop
func (h *Hub) Stop() {
	close(h.done)
}

// Register hands a newly upgraded connection to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister detaches a dashboard; its send channel is closed by the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast queues a message for every dashboard. Messages are dropped,
// not queued unboundedly, when the hub is saturated.
func (h *Hub) Broadcast(message *WebMessage) {
	select {
	case h.broadcast <- message:
	default:
		logger.Warn("Broadcast channel full, dropping message")
	}
}

// ClientCount returns the number of connected dashboards
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
