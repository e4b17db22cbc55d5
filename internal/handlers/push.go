package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RegisterTokenRequest carries a device push token
type RegisterTokenRequest struct {
	Token string `json:"token"`
}

// RequestPushPermission reports whether notifications can be delivered to the caller
func (h *Handler) RequestPushPermission(c *fiber.Ctx) error {
	perm := h.Push.RequestPermission(c.UserContext(), caller(c).Name)
	return ok(c, fiber.Map{"permission": perm})
}

func (h *Handler) RegisterPushToken(c *fiber.Ctx) error {
	var req RegisterTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return fail(c, fiber.StatusBadRequest, "Token is required")
	}
	if err := h.Push.RegisterToken(c.UserContext(), caller(c).Name, token); err != nil {
		return respondError(c, err)
	}
	return created(c, fiber.Map{"token": token})
}

// GetPushToken returns the caller's latest token; empty when none is registered
func (h *Handler) GetPushToken(c *fiber.Ctx) error {
	token, err := h.Push.Token(c.UserContext(), caller(c).Name)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.Map{"token": token})
}
