package admin

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/router"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-gemini-bot/pkg/whatsapp"
)

// GetWhatsAppWebVersion
// @Summary     Show the Active WhatsApp Web Version
// @Tags        Admin
// @Produce     json
// @Security    AdminAuth
// @Success     200
// @Router      /admin/whatsapp/version [get]
func GetWhatsAppWebVersion(c *fiber.Ctx) error {
	status := pkgWhatsApp.WhatsAppGetWAVersionRefreshStatus()
	return router.ResponseSuccessWithData(c, "Success get WhatsApp Web version", status)
}

// RefreshWhatsAppWebVersion
// @Summary     Refresh the WhatsApp Web Version
// @Description Fetch the latest WhatsApp Web version and apply it to the client store
// @Tags        Admin
// @Produce     json
// @Param       force query bool false "Bypass the refresh throttle"
// @Security    AdminAuth
// @Success     200
// @Router      /admin/whatsapp/version/refresh [post]
func RefreshWhatsAppWebVersion(c *fiber.Ctx) error {
	force, err := strconv.ParseBool(strings.TrimSpace(c.Query("force", "false")))
	if err != nil {
		force = false
	}

	status, refreshed, err := pkgWhatsApp.WhatsAppRefreshWAVersion(c.UserContext(), force)
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	message := "WhatsApp Web version refresh skipped by throttle"
	if refreshed {
		message = "Success refresh WhatsApp Web version"
	}

	return router.ResponseSuccessWithData(c, message, status)
}
