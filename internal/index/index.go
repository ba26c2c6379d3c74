package index

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/router"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-gemini-bot/pkg/whatsapp"
)

// Index
// @Summary     Show The Status of The Server
// @Description Get The Server Status
// @Tags        Root
// @Produce     json
// @Success     200
// @Router      / [get]
func Index(c *fiber.Ctx) error {
	return router.ResponseSuccess(c, "Go WhatsApp Gemini Bot is running")
}

// Health
// @Summary     Show the Bot Health
// @Description Get the WhatsApp session readiness
// @Tags        Root
// @Produce     json
// @Success     200
// @Router      /health [get]
func Health(c *fiber.Ctx) error {
	health := map[string]interface{}{
		"session_ready": pkgWhatsApp.WhatsAppIsClientOK() == nil,
	}
	return router.ResponseSuccessWithData(c, "Success get health", health)
}
