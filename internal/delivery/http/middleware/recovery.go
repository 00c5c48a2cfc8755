package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain"
)

// Recovery - middleware для восстановления после паники; паника уходит в лог
// вместе с маршрутом и correlation id запроса
func Recovery(logger *zap.Logger) fiber.Handler {
	return recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			logger.Error("Panic recovered",
				zap.Any("panic", e),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("correlation_id", c.Get(domain.CorrelationHeader)),
				zap.Stack("stack"))
		},
	})
}
