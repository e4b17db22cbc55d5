package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"tripmate/server/internal/blobstore"
)

// GetFile serves blobs stored on the local filesystem
func (h *Handler) GetFile(c *fiber.Ctx) error {
	if h.Local == nil {
		return fail(c, fiber.StatusNotFound, "File not found")
	}

	file, size, contentType, err := h.Local.Open(c.Params("*"))
	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		return fail(c, fiber.StatusNotFound, "File not found")
	case errors.Is(err, blobstore.ErrInvalidPath):
		return fail(c, fiber.StatusBadRequest, "Invalid file path")
	case err != nil:
		return respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	// fasthttp closes the file once the body has been streamed
	return c.SendStream(file, int(size))
}
