package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"tripmate/server/internal/identity"
	"tripmate/server/internal/middleware"
	"tripmate/server/internal/service"
)

// SetNameRequest represents the identity request body
type SetNameRequest struct {
	Name string `json:"name"`
}

// GetIdentity returns the caller's identity record, or an empty one
func (h *Handler) GetIdentity(c *fiber.Ctx) error {
	id, found := middleware.Identity(c)
	if !found {
		id = identity.Identity{GroupIDs: []string{}}
	}
	return ok(c, id)
}

// PutIdentity sets or renames the caller's display name. Joined groups are
// kept and the new name is added to each group's members.
func (h *Handler) PutIdentity(c *fiber.Ctx) error {
	var req SetNameRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return fail(c, fiber.StatusBadRequest, "Name is required")
	}

	prev := caller(c)
	id := prev.Rename(name)
	if id.Name != prev.Name {
		for _, groupID := range prev.GroupIDs {
			_, joined, err := h.groups.Join(c.UserContext(), groupID, id)
			if errors.Is(err, service.ErrNotFound) {
				continue
			}
			if err != nil {
				return respondError(c, err)
			}
			id = joined
		}
	}
	if id.GroupIDs == nil {
		id.GroupIDs = []string{}
	}
	if err := middleware.SaveIdentity(c, h.Codec, id); err != nil {
		return respondError(c, err)
	}
	return ok(c, id)
}
