package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"tripmate/server/internal/blobstore"
	"tripmate/server/internal/chat"
	"tripmate/server/internal/docstore"
	"tripmate/server/internal/models"
)

// SendMessageRequest represents send message request body
type SendMessageRequest struct {
	Content string `json:"content"`
}

// EditMessageRequest represents edit message request body
type EditMessageRequest struct {
	Content string `json:"content"`
}

func (h *Handler) actions(groupID string) *chat.Actions {
	return chat.NewActions(h.Store, h.Blobs, h.Push, groupID)
}

// GetMessages returns one page of messages, oldest first, older than ?before=
func (h *Handler) GetMessages(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", strconv.Itoa(h.Chat.PageSize)))
	if limit < 1 || limit > 100 {
		limit = h.Chat.PageSize
	}

	msgs, hasMore, err := chat.Page(c.UserContext(), h.Store, c.Params("groupId"), c.Query("before"), limit)
	if err != nil {
		return respondError(c, err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return ok(c, fiber.Map{
		"messages": msgs,
		"hasMore":  hasMore,
	})
}

// SendMessage posts a text message as the caller
func (h *Handler) SendMessage(c *fiber.Ctx) error {
	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	id, err := h.actions(c.Params("groupId")).SendMessage(c.UserContext(), req.Content, caller(c))
	if err != nil {
		return respondError(c, err)
	}
	return created(c, fiber.Map{"id": id})
}

// SendImageMessage uploads the multipart "image" field and posts it as a message
func (h *Handler) SendImageMessage(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "No image uploaded")
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = blobstore.ContentType(file.Filename)
	}

	body, err := file.Open()
	if err != nil {
		return respondError(c, err)
	}
	defer body.Close()

	id, err := h.actions(c.Params("groupId")).SendImageMessage(c.UserContext(), chat.Image{
		Name:        file.Filename,
		Size:        file.Size,
		ContentType: contentType,
		Body:        body,
	}, caller(c), nil)
	if err != nil {
		return respondError(c, err)
	}
	return created(c, fiber.Map{"id": id})
}

// EditMessage replaces the content of a text message
func (h *Handler) EditMessage(c *fiber.Ctx) error {
	var req EditMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.actions(c.Params("groupId")).EditMessage(c.UserContext(), c.Params("messageId"), req.Content); err != nil {
		return respondError(c, err)
	}
	return ok(c, nil)
}

// DeleteMessage removes a message for everyone
func (h *Handler) DeleteMessage(c *fiber.Ctx) error {
	if err := h.actions(c.Params("groupId")).DeleteMessage(c.UserContext(), c.Params("messageId")); err != nil {
		return respondError(c, err)
	}
	return ok(c, nil)
}

// MarkAsRead adds the caller to a message's readers
func (h *Handler) MarkAsRead(c *fiber.Ctx) error {
	path := models.GroupDoc(c.Params("groupId"), models.MessagesCollection, c.Params("messageId"))
	err := h.Store.Update(c.UserContext(), path, map[string]any{
		"readBy": docstore.ArrayUnion(caller(c).Name),
	})
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, nil)
}
