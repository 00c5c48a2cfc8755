package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS - middleware для настройки Cross-Origin Resource Sharing
func CORS(origins []string) fiber.Handler {
	allowOrigins := strings.Join(origins, ",")
	return cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Content-Type,Accept,Accept-Language,Authorization," + CorrelationHeader,
		ExposeHeaders:    CorrelationHeader,
		AllowCredentials: allowOrigins != "*",
	})
}
