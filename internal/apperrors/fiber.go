package apperrors

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler maps structured errors to their HTTP responses. Wired as the
// fiber app's central error handler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	if appErr, ok := As(err); ok {
		if appErr.RetryAfter > 0 {
			c.Set("Retry-After", strconv.Itoa(appErr.RetryAfter))
		}
		return c.Status(appErr.Status).JSON(appErr)
	}

	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
