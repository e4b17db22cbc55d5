package routes

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"tripmate/server/internal/handlers"
	"tripmate/server/internal/metrics"
	"tripmate/server/internal/middleware"
)

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, h *handlers.Handler) {
	app.Use(middleware.LoadIdentity(h.Codec))

	app.Get("/metrics", metrics.Handler())

	// Serve locally stored blobs (public; paths are unguessable)
	app.Get("/uploads/*", h.GetFile)

	// API v1 group
	api := app.Group("/api/v1")

	api.Get("/health", handlers.Health)

	// Identity (public: this is where a visitor picks a name)
	api.Get("/identity", h.GetIdentity)
	api.Put("/identity", middleware.ModerateRateLimiter(), h.PutIdentity)

	// Push routes
	pushes := api.Group("/push", middleware.RequireIdentity)
	pushes.Post("/permission", h.RequestPushPermission)
	pushes.Post("/token", middleware.ModerateRateLimiter(), h.RegisterPushToken)
	pushes.Get("/token", h.GetPushToken)

	// Group routes
	groups := api.Group("/groups", middleware.RequireIdentity)
	groups.Post("/", middleware.StrictRateLimiter(), h.CreateGroup)
	groups.Get("/", h.GetGroups)
	groups.Get("/:groupId", h.GetGroup)
	groups.Post("/:groupId/join", middleware.StrictRateLimiter(), h.JoinGroup)

	// Everything below requires membership. The check is per route: a group
	// middleware would also guard GET /:groupId and /join above.
	member := groups.Group("/:groupId")
	isMember := middleware.RequireMember

	member.Get("/schedules", isMember, middleware.RelaxedRateLimiter(), h.GetSchedules)
	member.Post("/schedules", isMember, middleware.ModerateRateLimiter(), h.CreateSchedule)
	member.Patch("/schedules/:scheduleId", isMember, middleware.ModerateRateLimiter(), h.UpdateSchedule)
	member.Delete("/schedules/:scheduleId", isMember, h.DeleteSchedule)

	member.Get("/announcements", isMember, middleware.RelaxedRateLimiter(), h.GetAnnouncements)
	member.Post("/announcements", isMember, middleware.ModerateRateLimiter(), h.CreateAnnouncement)
	member.Patch("/announcements/:announcementId/pin", isMember, h.PinAnnouncement)
	member.Delete("/announcements/:announcementId", isMember, h.DeleteAnnouncement)

	member.Get("/votes", isMember, middleware.RelaxedRateLimiter(), h.GetVotes)
	member.Post("/votes", isMember, middleware.ModerateRateLimiter(), h.CreateVote)
	member.Post("/votes/:voteId/cast", isMember, middleware.ModerateRateLimiter(), h.CastVote)
	member.Get("/votes/:voteId/results", isMember, h.GetVoteResults)
	member.Delete("/votes/:voteId", isMember, h.DeleteVote)

	member.Get("/menus", isMember, middleware.RelaxedRateLimiter(), h.GetMenus)
	member.Post("/menus", isMember, middleware.ModerateRateLimiter(), h.CreateMenu)
	member.Post("/menus/:menuId/toggle", isMember, middleware.ModerateRateLimiter(), h.ToggleMenuItem)
	member.Delete("/menus/:menuId", isMember, h.DeleteMenu)

	member.Get("/messages", isMember, middleware.RelaxedRateLimiter(), h.GetMessages)
	member.Post("/messages", isMember, middleware.ModerateRateLimiter(), h.SendMessage)
	member.Post("/messages/image", isMember, middleware.UploadRateLimiter(), h.SendImageMessage)
	member.Patch("/messages/:messageId", isMember, h.EditMessage)
	member.Delete("/messages/:messageId", isMember, h.DeleteMessage)
	member.Post("/messages/:messageId/read", isMember, h.MarkAsRead)

	// WebSocket routes
	member.Get("/chat", isMember, handlers.WebSocketUpgrade, websocket.New(h.ChatSocket))
	member.Get("/live", isMember, handlers.WebSocketUpgrade, websocket.New(h.LiveSocket))

	// WebSocket stats (for debugging)
	api.Get("/ws/stats", h.GetWebSocketStats)
}
