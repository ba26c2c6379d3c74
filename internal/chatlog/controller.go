package chatlog

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/auth"
	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/router"
)

var controllerStore *Store

// InitController wires the store the HTTP handlers read from.
func InitController(store *Store) {
	controllerStore = store
}

type ResponseToken struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

func queryLimit(c *fiber.Ctx) int {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}

// IssueToken
// @Summary     Exchange the Admin Secret for a Chat Log Access Token
// @Tags        Logs
// @Produce     json
// @Security    AdminAuth
// @Success     200
// @Router      /auth/token [post]
func IssueToken(c *fiber.Ctx) error {
	token, expiresAt, err := auth.GenerateChatlogToken()
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	var resToken ResponseToken
	resToken.Token = token
	resToken.ExpiresAt = expiresAt.Format("2006-01-02T15:04:05Z07:00")

	return router.ResponseSuccessWithData(c, "Success generate access token", resToken)
}

// GetRecent
// @Summary     List the Most Recent Chat Log Entries
// @Tags        Logs
// @Produce     json
// @Param       limit query int false "Maximum number of entries (default 50, max 500)"
// @Security    BearerAuth
// @Success     200
// @Router      /logs [get]
func GetRecent(c *fiber.Ctx) error {
	if controllerStore == nil {
		return router.ResponseInternalError(c, "Chat log store is not initialized")
	}

	entries, err := controllerStore.Recent(c.UserContext(), queryLimit(c))
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	return router.ResponseSuccessWithData(c, "Success get chat logs", entries)
}

// GetBySender
// @Summary     List Chat Log Entries for One Sender
// @Tags        Logs
// @Produce     json
// @Param       sender path string true "Sender phone number"
// @Param       limit query int false "Maximum number of entries (default 50, max 500)"
// @Security    BearerAuth
// @Success     200
// @Router      /logs/{sender} [get]
func GetBySender(c *fiber.Ctx) error {
	if controllerStore == nil {
		return router.ResponseInternalError(c, "Chat log store is not initialized")
	}

	sender := c.Params("sender")
	if sender == "" {
		return router.ResponseBadRequest(c, "Sender is required")
	}

	entries, err := controllerStore.BySender(c.UserContext(), sender, queryLimit(c))
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	return router.ResponseSuccessWithData(c, "Success get chat logs for sender", entries)
}
