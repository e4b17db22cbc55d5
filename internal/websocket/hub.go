package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"tripmate/server/internal/metrics"
	"tripmate/server/internal/push"
)

// Hub maintains the set of active clients, indexed by group
type Hub struct {
	clients map[*Client]struct{}
	groups  map[string]map[*Client]struct{}

	mu sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		groups:  make(map[string]map[*Client]struct{}),
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = struct{}{}
	set, ok := h.groups[client.GroupID]
	if !ok {
		set = make(map[*Client]struct{})
		h.groups[client.GroupID] = set
	}
	set[client] = struct{}{}
	metrics.LiveSessions.Inc()

	slog.Info("client connected", "client_id", client.ID, "group_id", client.GroupID, "user", client.UserName)
}

// Unregister removes a client from the hub and stops its write pump
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	if set, ok := h.groups[client.GroupID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.groups, client.GroupID)
		}
	}
	client.close()
	metrics.LiveSessions.Dec()

	slog.Info("client disconnected", "client_id", client.ID, "group_id", client.GroupID, "user", client.UserName)
}

// BroadcastToGroup sends a message to every connection of a group except those of excludeUser
func (h *Hub) BroadcastToGroup(groupID string, message WSMessage, excludeUser string) {
	data, err := json.Marshal(message)
	if err != nil {
		slog.Error("failed to marshal message", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.groups[groupID]))
	for c := range h.groups[groupID] {
		if c.UserName != excludeUser {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case <-c.done:
		case c.Send <- data:
		default:
			slog.Warn("failed to send message to client", "client_id", c.ID)
		}
	}
}

// ForwardNotifications relays foreground push notifications to the connected
// members of the notification's group, skipping its author.
func (h *Hub) ForwardNotifications(gateway push.Gateway) (unsubscribe func()) {
	return gateway.OnForegroundMessage(func(n push.Notification) {
		h.BroadcastToGroup(n.GroupID, NewMessage(EventNotification, n), n.Author)
	})
}

// GroupCount returns the number of connections per group
func (h *Hub) GroupCount() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]int, len(h.groups))
	for g, set := range h.groups {
		out[g] = len(set)
	}
	return out
}

// GetOnlineCount returns the number of currently connected clients
func (h *Hub) GetOnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// CloseAll disconnects every client
func (h *Hub) CloseAll() {
	h.mu.RLock()
	all := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()

	for _, c := range all {
		c.close()
		c.Conn.Close()
	}
}
