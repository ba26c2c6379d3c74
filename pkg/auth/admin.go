package auth

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/router"
)

// AdminAuth validates the X-Admin-Secret header for session-control endpoints
func AdminAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		adminSecret := c.Get("X-Admin-Secret")
		if adminSecret == "" {
			return router.ResponseUnauthorized(c, "Missing X-Admin-Secret header")
		}

		secretKey := adminSecretKey()
		if secretKey == "" {
			return router.ResponseInternalError(c, "Admin secret key not configured")
		}

		if subtle.ConstantTimeCompare([]byte(adminSecret), []byte(secretKey)) != 1 {
			return router.ResponseUnauthorized(c, "Invalid admin secret")
		}

		return c.Next()
	}
}
