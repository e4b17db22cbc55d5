package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimiter creates a rate limiting middleware
func RateLimiter(max int, expiration time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			// Names are not unique across browsers, so they only narrow the IP key
			if id, ok := Identity(c); ok {
				return c.IP() + "|" + id.Name
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "Too many requests, please try again later",
			})
		},
	})
}

// StrictRateLimiter for group creation and joining
func StrictRateLimiter() fiber.Handler {
	return RateLimiter(10, 15*time.Minute) // 10 requests per 15 minutes
}

// ModerateRateLimiter for regular writes
func ModerateRateLimiter() fiber.Handler {
	return RateLimiter(60, 1*time.Minute) // 60 requests per minute
}

// RelaxedRateLimiter for read-only endpoints
func RelaxedRateLimiter() fiber.Handler {
	return RateLimiter(200, 1*time.Minute) // 200 requests per minute
}

// UploadRateLimiter for chat images
func UploadRateLimiter() fiber.Handler {
	return RateLimiter(10, 5*time.Minute) // 10 uploads per 5 minutes
}
