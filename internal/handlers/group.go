package handlers

import (
	"github.com/gofiber/fiber/v2"

	"tripmate/server/internal/middleware"
	"tripmate/server/internal/models"
)

// CreateGroup creates a new trip group with the caller as its first member
func (h *Handler) CreateGroup(c *fiber.Ctx) error {
	var req models.GroupInput
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	group, id, err := h.groups.Create(c.UserContext(), req, caller(c))
	if err != nil {
		return respondError(c, err)
	}
	if err := middleware.SaveIdentity(c, h.Codec, id); err != nil {
		return respondError(c, err)
	}
	return created(c, group)
}

// GetGroups returns the groups the caller has joined
func (h *Handler) GetGroups(c *fiber.Ctx) error {
	groups, err := h.groups.ListForIdentity(c.UserContext(), caller(c))
	if err != nil {
		return respondError(c, err)
	}
	if groups == nil {
		groups = []models.Group{}
	}
	return ok(c, groups)
}

// GetGroup returns one group; anyone holding the id may look before joining
func (h *Handler) GetGroup(c *fiber.Ctx) error {
	group, err := h.groups.Get(c.UserContext(), c.Params("groupId"))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, group)
}

// JoinGroup adds the caller to a group and records it in their identity
func (h *Handler) JoinGroup(c *fiber.Ctx) error {
	group, id, err := h.groups.Join(c.UserContext(), c.Params("groupId"), caller(c))
	if err != nil {
		return respondError(c, err)
	}
	if err := middleware.SaveIdentity(c, h.Codec, id); err != nil {
		return respondError(c, err)
	}
	return ok(c, group)
}
