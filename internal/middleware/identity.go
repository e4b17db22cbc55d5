package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"tripmate/server/internal/identity"
)

// IdentityLocal is the context key holding the caller's identity.Identity.
// It survives the websocket upgrade.
const IdentityLocal = "identity"

// LoadIdentity decodes the identity cookie, if any, into the request context.
// A missing or tampered cookie leaves the request anonymous.
func LoadIdentity(codec *identity.Codec) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(identity.CookieName)
		if raw == "" {
			return c.Next()
		}
		id, err := codec.Decode(raw)
		if err == nil && id.Valid() {
			c.Locals(IdentityLocal, id)
		}
		return c.Next()
	}
}

// RequireIdentity rejects requests from visitors who have not chosen a name yet
func RequireIdentity(c *fiber.Ctx) error {
	if _, ok := Identity(c); !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "Set your name first",
		})
	}
	return c.Next()
}

// RequireMember rejects requests for a group the caller has not joined
func RequireMember(c *fiber.Ctx) error {
	id, ok := Identity(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "Set your name first",
		})
	}
	if !id.HasGroup(c.Params("groupId")) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"error":   "Join this group first",
		})
	}
	return c.Next()
}

// Identity gets the caller's identity from context
func Identity(c *fiber.Ctx) (identity.Identity, bool) {
	id, ok := c.Locals(IdentityLocal).(identity.Identity)
	return id, ok
}

// SaveIdentity signs id into the identity cookie and updates the request context
func SaveIdentity(c *fiber.Ctx, codec *identity.Codec, id identity.Identity) error {
	token, err := codec.Encode(id)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     identity.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(identity.TTL),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	c.Locals(IdentityLocal, id)
	return nil
}
