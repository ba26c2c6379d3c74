package router

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// HttpErrorHandler renders every unhandled route error as the standard
// response envelope.
func HttpErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	response := Response{
		Status:  false,
		Code:    code,
		Message: message,
		Error:   message,
	}

	logError(c, response.Code, response.Message)
	return c.Status(response.Code).JSON(response)
}
