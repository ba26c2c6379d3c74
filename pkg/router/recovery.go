package router

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-gemini-bot/pkg/log"
)

// RecoveryMiddleware converts route panics into the standard JSON envelope.
// It must be registered before the application routes.
func RecoveryMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			message := fmt.Sprintf("%v", rec)
			log.Print(c).WithField("request_id", c.Locals("request_id")).Error("panic recovered: " + message)

			resp := Response{
				Status:  false,
				Code:    fiber.StatusInternalServerError,
				Message: message,
				Error:   message,
			}
			_ = c.Status(resp.Code).JSON(resp)
		}()
		return c.Next()
	}
}
