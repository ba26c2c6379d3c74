package internal

import (
	"github.com/gofiber/fiber/v2"
	swagger "github.com/gofiber/swagger"

	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/auth"
	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/router"

	ctlAdmin "github.com/gdbrns/go-whatsapp-gemini-bot/internal/admin"
	ctlChatlog "github.com/gdbrns/go-whatsapp-gemini-bot/internal/chatlog"
	ctlIndex "github.com/gdbrns/go-whatsapp-gemini-bot/internal/index"
	ctlSession "github.com/gdbrns/go-whatsapp-gemini-bot/internal/session"
)

func Routes(app *fiber.App) {
	// Configure OpenAPI / Swagger
	specURL := router.BaseURL + "/docs/swagger.json"
	swaggerHandler := swagger.New(swagger.Config{
		URL: specURL,
	})

	// Route for Index
	// ---------------------------------------------
	if router.BaseURL == "" {
		app.Get("/", ctlIndex.Index)
	} else {
		app.Get(router.BaseURL, ctlIndex.Index)
		app.Get(router.BaseURL+"/", ctlIndex.Index)
	}
	app.Get(router.BaseURL+"/health", ctlIndex.Health)

	// Route for OpenAPI / Swagger
	// ---------------------------------------------
	app.Get(router.BaseURL+"/docs/swagger.json", func(c *fiber.Ctx) error {
		return c.SendFile("docs/swagger.json")
	})
	app.Get(router.BaseURL+"/docs/*", swaggerHandler)

	// ============================================================
	// SESSION ROUTES (X-Admin-Secret authentication)
	// ============================================================
	adminMiddleware := auth.AdminAuth()

	app.Post(router.BaseURL+"/session/login", adminMiddleware, ctlSession.Login)
	app.Post(router.BaseURL+"/session/login-code", adminMiddleware, ctlSession.LoginWithCode)
	app.Post(router.BaseURL+"/session/reconnect", adminMiddleware, ctlSession.Reconnect)
	app.Delete(router.BaseURL+"/session", adminMiddleware, ctlSession.Logout)
	app.Get(router.BaseURL+"/session/status", adminMiddleware, ctlSession.Status)

	// Admin utilities
	app.Get(router.BaseURL+"/admin/whatsapp/version", adminMiddleware, ctlAdmin.GetWhatsAppWebVersion)
	app.Post(router.BaseURL+"/admin/whatsapp/version/refresh", adminMiddleware, ctlAdmin.RefreshWhatsAppWebVersion)

	// ============================================================
	// TOKEN EXCHANGE (X-Admin-Secret authentication)
	// ============================================================
	app.Post(router.BaseURL+"/auth/token", adminMiddleware, ctlChatlog.IssueToken)

	// ============================================================
	// CHAT LOG ROUTES (JWT Bearer token authentication)
	// ============================================================
	chatlogMiddleware := auth.ChatlogAuth()

	app.Get(router.BaseURL+"/logs", chatlogMiddleware, ctlChatlog.GetRecent)
	app.Get(router.BaseURL+"/logs/:sender", chatlogMiddleware, ctlChatlog.GetBySender)

	// Anything not matched above
	app.Use(func(c *fiber.Ctx) error {
		return router.ResponseNotFound(c, "Route not found")
	})
}
