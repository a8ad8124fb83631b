package handler

import (
	"context"
	"log/slog"
	"sync"
)

// Hub tracks the live WebSocket connections of each user and delivers notices to
// them. It implements service.Notifier.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]map[*wsConn]struct{}
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conns:  make(map[string]map[*wsConn]struct{}),
		logger: slog.Default(),
	}
}

func (h *Hub) register(c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[c.userID] == nil {
		h.conns[c.userID] = make(map[*wsConn]struct{})
	}
	h.conns[c.userID][c] = struct{}{}
}

// unregister removes c and returns how many connections its user still has.
func (h *Hub) unregister(c *wsConn) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.conns[c.userID]
	if !ok {
		return 0
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.conns, c.userID)
	}
	return len(conns)
}

// Connections returns the number of open connections of userID.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// Notify sends an error frame to every connection of userID. Users without a
// connection only get a log line.
func (h *Hub) Notify(ctx context.Context, userID, message string) {
	h.mu.RLock()
	targets := make([]*wsConn, 0, len(h.conns[userID]))
	for c := range h.conns[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		h.logger.Info("User notice without live connection", "userId", userID, "message", message)
		return
	}
	for _, c := range targets {
		c.enqueue(errorFrame(message))
	}
}

// Count returns the number of open connections across all users.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.conns {
		n += len(conns)
	}
	return n
}
