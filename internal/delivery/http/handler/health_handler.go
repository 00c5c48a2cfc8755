package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/usecase/dto"
)

// HealthChecker is anything with a ping, e.g. the database or Redis.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler - состояние сервиса и его зависимостей
type HealthHandler struct {
	storage  string
	checkers map[string]HealthChecker
	logger   *zap.Logger
}

func NewHealthHandler(storage string, checkers map[string]HealthChecker, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{storage: storage, checkers: checkers, logger: logger}
}

// Health godoc
// @Summary Проверка состояния
// @Tags Health
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Failure 503 {object} dto.HealthResponse
// @Router /api/v1/health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	resp := dto.HealthResponse{
		Status:    "healthy",
		Storage:   h.storage,
		Checks:    make(map[string]string, len(h.checkers)),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := fiber.StatusOK
	for name, checker := range h.checkers {
		if err := checker.Health(ctx); err != nil {
			h.logger.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			resp.Checks[name] = err.Error()
			resp.Status = "unhealthy"
			status = fiber.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	return c.Status(status).JSON(resp)
}
