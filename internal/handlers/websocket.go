package handlers

import (
	"context"
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"tripmate/server/internal/chat"
	"tripmate/server/internal/identity"
	"tripmate/server/internal/middleware"
	ws "tripmate/server/internal/websocket"
)

// WebSocketUpgrade checks if the request should be upgraded to WebSocket
func WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}

	return fail(c, fiber.StatusUpgradeRequired, "WebSocket upgrade required")
}

func socketIdentity(c *websocket.Conn) identity.Identity {
	id, _ := c.Locals(middleware.IdentityLocal).(identity.Identity)
	return id
}

// ChatSocket mounts a chat session for the group on the connection
func (h *Handler) ChatSocket(c *websocket.Conn) {
	user := socketIdentity(c)
	groupID := c.Params("groupId")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := ws.NewClient(groupID, user.Name, c, h.Hub)
	session := chat.NewSession(h.Store, h.actions(groupID), groupID, user, h.Chat, client)
	client.SetHandler(session)
	h.Hub.Register(client)

	go client.WritePump()
	if err := session.Start(ctx); err != nil {
		slog.Error("chat session failed to start", "group_id", groupID, "user", user.Name, "error", err)
		session.Close()
		h.Hub.Unregister(client)
		return
	}
	client.ReadPump(ctx) // blocks until the connection closes
}

// LiveSocket streams the group, its schedules, announcements, votes and menus
func (h *Handler) LiveSocket(c *websocket.Conn) {
	user := socketIdentity(c)
	groupID := c.Params("groupId")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := ws.NewClient(groupID, user.Name, c, h.Hub)
	h.Hub.Register(client)
	go client.WritePump()

	view, err := h.startLive(ctx, groupID, user, client)
	if err != nil {
		slog.Error("live view failed to start", "group_id", groupID, "error", err)
		h.Hub.Unregister(client)
		return
	}
	client.SetHandler(view)
	client.ReadPump(ctx)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(c *fiber.Ctx) error {
	return ok(c, fiber.Map{
		"online": h.Hub.GetOnlineCount(),
		"groups": h.Hub.GroupCount(),
	})
}

// Health reports liveness
func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"message": "Tripmate API is running",
	})
}
