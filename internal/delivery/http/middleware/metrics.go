package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/dispatch-board/internal/pkg/metrics"
)

// Metrics records request count and latency per route pattern.
func Metrics(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		// шаблон маршрута, а не сырой путь: иначе id раздувают кардинальность
		path := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		m.RecordHTTPRequest(c.Method(), path, status, time.Since(start))
		return err
	}
}
