package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Recovery turns panics into a 500 response with a correlation id the
// caller can quote back.
func Recovery() fiber.Handler {
	return func(c *fiber.Ctx) error {
		defer func() {
			if r := recover(); r != nil {
				correlationID := uuid.NewString()
				logrus.Errorf("[REST] Panic recovered (correlation %s) on %s %s: %v",
					correlationID, c.Method(), c.Path(), r)
				_ = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"success":        false,
					"error":          "INTERNAL",
					"message":        "internal server error",
					"correlation_id": correlationID,
				})
			}
		}()
		return c.Next()
	}
}
