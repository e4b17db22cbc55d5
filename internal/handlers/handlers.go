// Package handlers exposes the trip planner over HTTP and websockets.
package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"tripmate/server/internal/blobstore"
	"tripmate/server/internal/chat"
	"tripmate/server/internal/docstore"
	"tripmate/server/internal/identity"
	"tripmate/server/internal/middleware"
	"tripmate/server/internal/push"
	"tripmate/server/internal/service"
	ws "tripmate/server/internal/websocket"
)

// Deps are the collaborators shared by every handler
type Deps struct {
	Store docstore.Store
	Blobs blobstore.Store
	// Local is set when blobs live on this server's disk and must be served by it
	Local *blobstore.LocalStore
	Push  push.Gateway
	Hub   *ws.Hub
	Codec *identity.Codec
	Chat  chat.Options
}

// Handler holds the services behind the routes
type Handler struct {
	Deps

	groups        *service.GroupService
	schedules     *service.ScheduleService
	announcements *service.AnnouncementService
	votes         *service.VoteService
	menus         *service.MenuService
}

// New builds the handlers over one document store
func New(deps Deps) *Handler {
	return &Handler{
		Deps:          deps,
		groups:        service.NewGroupService(deps.Store),
		schedules:     service.NewScheduleService(deps.Store),
		announcements: service.NewAnnouncementService(deps.Store, deps.Push),
		votes:         service.NewVoteService(deps.Store),
		menus:         service.NewMenuService(deps.Store),
	}
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// respondError maps domain errors to status codes; anything unexpected is
// logged and reported as a generic failure.
func respondError(c *fiber.Ctx, err error) error {
	var v *service.ValidationError
	switch {
	case errors.As(err, &v):
		return fail(c, fiber.StatusBadRequest, v.Message)
	case errors.Is(err, service.ErrUnknownOption), errors.Is(err, service.ErrUnknownMenuItem):
		return fail(c, fiber.StatusBadRequest, capitalize(err.Error()))
	case errors.Is(err, docstore.ErrNotFound):
		return fail(c, fiber.StatusNotFound, "Not found")
	case errors.Is(err, service.ErrVoteClosed):
		return fail(c, fiber.StatusConflict, "This vote has closed")
	case errors.Is(err, docstore.ErrConflict), errors.Is(err, service.ErrTooManyConflicts):
		return fail(c, fiber.StatusConflict, "Someone else changed this at the same time, please retry")
	default:
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return fail(c, fiber.StatusInternalServerError, "Something went wrong, please try again")
	}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

// caller returns the identity loaded by the identity middleware. Routes that
// need one are guarded by RequireIdentity or RequireMember.
func caller(c *fiber.Ctx) identity.Identity {
	id, _ := middleware.Identity(c)
	return id
}
