package realtime

import (
	"log/slog"
	"sync"

	realtimeTypes "github.com/nikhildhole/mermaid-visualizer/pkg/realtime"
)

// Hub tracks the live connections of the document authority.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger.With("component", "realtime_hub"),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID()] = client
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	client, ok := h.clients[clientID]
	if ok {
		delete(h.clients, clientID)
	}
	h.mu.Unlock()

	if ok {
		client.Close()
	}
}

// Publish queues msg on every client subscribed to topic except the one
// with id except. Clients whose buffer is full are dropped.
func (h *Hub) Publish(topic string, msg realtimeTypes.ServerEnvelope, except string) int {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for id, client := range h.clients {
		if id == except {
			continue
		}
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, client := range clients {
		if !client.IsSubscribed(topic) {
			continue
		}
		if client.Queue(msg) {
			delivered++
			continue
		}
		h.logger.Warn("dropping slow client", "client_id", client.ID(), "topic", topic)
		h.Unregister(client.ID())
	}
	return delivered
}

func (h *Hub) Subscribe(clientID string, topics []string) bool {
	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	client.Subscribe(topics)
	return true
}

func (h *Hub) Unsubscribe(clientID string, topics []string) bool {
	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	client.Unsubscribe(topics)
	return true
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
