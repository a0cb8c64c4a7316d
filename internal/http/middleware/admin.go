package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"linkhub/internal/auth"
)

// RequireAdmin rejects requests without an admin session. The dashboard is
// a JSON client, so it answers 401 instead of redirecting to a login page.
func RequireAdmin(session auth.Session, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if session.IsAuthenticated(c) {
			return c.Next()
		}
		logger.Debug("Unauthenticated admin request", slog.String("path", c.Path()))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
			"code":  "UNAUTHORIZED",
		})
	}
}
