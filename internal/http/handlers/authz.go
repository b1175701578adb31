package handlers

import (
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	applog "xandcastle/internal/log"
)

// RequireAdmin checks X-Admin-Token against a bcrypt hash. An empty hash locks the group.
func RequireAdmin(tokenHash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok := c.Get("X-Admin-Token")
		if tokenHash == "" || tok == "" {
			applog.Security(c, "access.denied.admin", map[string]any{"reason": "missing token"})
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "admin token required"})
		}
		if err := bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(tok)); err != nil {
			applog.Security(c, "access.denied.admin", map[string]any{"reason": "bad token"})
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "access denied"})
		}
		return c.Next()
	}
}
