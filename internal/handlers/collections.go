package handlers

import (
	"github.com/gofiber/fiber/v2"

	"tripmate/server/internal/models"
	"tripmate/server/internal/service"
)

// GetSchedules returns the itinerary in date and time order
func (h *Handler) GetSchedules(c *fiber.Ctx) error {
	items, err := h.schedules.List(c.UserContext(), c.Params("groupId"))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, items)
}

// CreateSchedule adds an itinerary entry
func (h *Handler) CreateSchedule(c *fiber.Ctx) error {
	var req models.ScheduleInput
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	entry, err := h.schedules.Add(c.UserContext(), c.Params("groupId"), req, caller(c))
	if err != nil {
		return respondError(c, err)
	}
	return created(c, entry)
}

// UpdateSchedule changes the fields present in the body
func (h *Handler) UpdateSchedule(c *fiber.Ctx) error {
	var req models.ScheduleInput
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	entry, err := h.schedules.Update(c.UserContext(), c.Params("groupId"), c.Params("scheduleId"), req)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, entry)
}

// DeleteSchedule removes an itinerary entry
func (h *Handler) DeleteSchedule(c *fiber.Ctx) error {
	if err := h.schedules.Delete(c.UserContext(), c.Params("groupId"), c.Params("scheduleId")); err != nil {
		return respondError(c, err)
	}
	return ok(c, nil)
}

// GetAnnouncements returns pinned announcements first, newest first within each band
func (h *Handler) GetAnnouncements(c *fiber.Ctx) error {
	items, err := h.announcements.List(c.UserContext(), c.Params("groupId"))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, items)
}

func (h *Handler) CreateAnnouncement(c *fiber.Ctx) error {
	var req models.AnnouncementInput
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	a, err := h.announcements.Add(c.UserContext(), c.Params("groupId"), req, caller(c))
	if err != nil {
		return respondError(c, err)
	}
	return created(c, a)
}

// PinRequest represents the pin toggle body
type PinRequest struct {
	Pinned bool `json:"pinned"`
}

func (h *Handler) PinAnnouncement(c *fiber.Ctx) error {
	var req PinRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.announcements.SetPinned(c.UserContext(), c.Params("groupId"), c.Params("announcementId"), req.Pinned); err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.Map{"pinned": req.Pinned})
}

func (h *Handler) DeleteAnnouncement(c *fiber.Ctx) error {
	if err := h.announcements.Delete(c.UserContext(), c.Params("groupId"), c.Params("announcementId")); err != nil {
		return respondError(c, err)
	}
	return ok(c, nil)
}

// VoteView is a vote with its current tally
type VoteView struct {
	models.Vote
	Results      []models.VoteResult `json:"results"`
	TotalVoters  int                 `json:"totalVoters"`
	Participated bool                `json:"participated"`
}

func voteView(v models.Vote, user string) VoteView {
	view := VoteView{Vote: v, Results: service.Tally(v), TotalVoters: service.DistinctVoters(v)}
	for _, voters := range v.Votes {
		for _, name := range voters {
			if name == user {
				view.Participated = true
			}
		}
	}
	return view
}

func voteViews(votes []models.Vote, user string) []VoteView {
	out := make([]VoteView, 0, len(votes))
	for _, v := range votes {
		out = append(out, voteView(v, user))
	}
	return out
}

func (h *Handler) GetVotes(c *fiber.Ctx) error {
	votes, err := h.votes.List(c.UserContext(), c.Params("groupId"))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, voteViews(votes, caller(c).Name))
}

func (h *Handler) CreateVote(c *fiber.Ctx) error {
	var req models.VoteInput
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	v, err := h.votes.Create(c.UserContext(), c.Params("groupId"), req, caller(c))
	if err != nil {
		return respondError(c, err)
	}
	return created(c, voteView(v, caller(c).Name))
}

// CastRequest represents a ballot
type CastRequest struct {
	Option string `json:"option"`
}

// CastVote toggles the caller's ballot for one option
func (h *Handler) CastVote(c *fiber.Ctx) error {
	var req CastRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	v, err := h.votes.Cast(c.UserContext(), c.Params("groupId"), c.Params("voteId"), req.Option, caller(c))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, voteView(v, caller(c).Name))
}

func (h *Handler) GetVoteResults(c *fiber.Ctx) error {
	v, err := h.votes.Get(c.UserContext(), c.Params("groupId"), c.Params("voteId"))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, voteView(v, caller(c).Name))
}

func (h *Handler) DeleteVote(c *fiber.Ctx) error {
	if err := h.votes.Delete(c.UserContext(), c.Params("groupId"), c.Params("voteId")); err != nil {
		return respondError(c, err)
	}
	return ok(c, nil)
}

// GetMenus lists menus, optionally only those of ?scheduleId=
func (h *Handler) GetMenus(c *fiber.Ctx) error {
	menus, err := h.menus.List(c.UserContext(), c.Params("groupId"), c.Query("scheduleId"))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, menus)
}

func (h *Handler) CreateMenu(c *fiber.Ctx) error {
	var req models.MenuInput
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	m, err := h.menus.Add(c.UserContext(), c.Params("groupId"), req, caller(c))
	if err != nil {
		return respondError(c, err)
	}
	return created(c, m)
}

// ToggleRequest names the dish to select or deselect
type ToggleRequest struct {
	Item string `json:"item"`
}

func (h *Handler) ToggleMenuItem(c *fiber.Ctx) error {
	var req ToggleRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	m, err := h.menus.ToggleSelection(c.UserContext(), c.Params("groupId"), c.Params("menuId"), req.Item, caller(c))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, m)
}

func (h *Handler) DeleteMenu(c *fiber.Ctx) error {
	if err := h.menus.Delete(c.UserContext(), c.Params("groupId"), c.Params("menuId")); err != nil {
		return respondError(c, err)
	}
	return ok(c, nil)
}
