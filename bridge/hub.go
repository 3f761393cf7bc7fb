package bridge

import (
	"context"
	"strconv"
	"sync"

	"github.com/kbukum/permgate/logger"
	"github.com/kbukum/permgate/observability"
)

// client is one connected SSE stream.
type client struct {
	id     string
	events chan []byte
}

// send queues data without blocking. It reports false when the client is
// too slow and the event was dropped.
func (c *client) send(data []byte) bool {
	select {
	case c.events <- data:
		return true
	default:
		return false
	}
}

// Hub tracks connected SSE clients and broadcasts prompt events to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
	log     *logger.Logger
}

// NewHub creates an empty hub.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.WithComponent("sse_hub")
	}
	return &Hub{clients: make(map[string]*client), log: log}
}

func (h *Hub) register(id string) (*client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	c := &client{id: id, events: make(chan []byte, 64)}
	h.clients[id] = c
	h.log.Debug("client registered", logger.Fields(
		logger.FieldClientID, id,
		"total_clients", len(h.clients),
	))
	return c, true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.id]; ok && cur == c {
		delete(h.clients, c.id)
		close(c.events)
		h.log.Debug("client unregistered", logger.Fields(
			logger.FieldClientID, c.id,
			"total_clients", len(h.clients),
		))
	}
}

// Broadcast queues data for every client and returns how many accepted it.
func (h *Hub) Broadcast(data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, c := range h.clients {
		if c.send(data) {
			delivered++
		} else {
			h.log.Warn("client channel full, dropping event", logger.Fields(logger.FieldClientID, c.id))
		}
	}
	return delivered
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, c := range h.clients {
		close(c.events)
		delete(h.clients, id)
	}
}

// CheckHealth reports the prompt stream as degraded while no client is
// connected, since every prompt fails until one is.
func (h *Hub) CheckHealth(context.Context) observability.Health {
	h.mu.RLock()
	closed, n := h.closed, len(h.clients)
	h.mu.RUnlock()

	health := observability.Health{
		Name:    "prompt_stream",
		Status:  observability.HealthStatusUp,
		Details: map[string]string{"clients": strconv.Itoa(n)},
	}
	switch {
	case closed:
		health.Status = observability.HealthStatusDown
		health.Message = "prompt stream closed"
	case n == 0:
		health.Status = observability.HealthStatusDegraded
		health.Message = "no prompt client connected"
	}
	return health
}
