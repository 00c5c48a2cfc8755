package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dispatch-board/internal/domain"
)

// CorrelationHeader carries the client mutation id.
const CorrelationHeader = domain.CorrelationHeader

// Correlation copies the client's mutation id into the request context, so
// the change events of the mutation carry it back to the client.
func Correlation() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id := c.Get(CorrelationHeader); id != "" {
			c.SetUserContext(domain.ContextWithCorrelationID(c.UserContext(), id))
			c.Set(CorrelationHeader, id)
		}
		return c.Next()
	}
}
