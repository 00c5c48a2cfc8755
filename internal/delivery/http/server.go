package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	fiberSwagger "github.com/swaggo/fiber-swagger"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/config"
	"github.com/dispatch-board/internal/delivery/http/handler"
	"github.com/dispatch-board/internal/delivery/http/middleware"
	"github.com/dispatch-board/internal/pkg/metrics"
	"github.com/dispatch-board/internal/pkg/utils"
)

// Handlers - набор обработчиков API
type Handlers struct {
	Board      *handler.BoardHandler
	Transport  *handler.TransportHandler
	Lifecycle  *handler.LifecycleHandler
	Assignment *handler.AssignmentHandler
	Slot       *handler.SlotHandler
	Resource   *handler.ResourceHandler
	Health     *handler.HealthHandler
}

// Server - HTTP сервер на основе Fiber
type Server struct {
	app         *fiber.App
	config      *config.Config
	metrics     *metrics.Metrics
	rateLimiter *middleware.RateLimiter
	handlers    Handlers
	logger      *zap.Logger
}

// NewServer - создание нового HTTP сервера
func NewServer(cfg *config.Config, m *metrics.Metrics, handlers Handlers, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "Dispatch Board",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: customErrorHandler(logger),
	})

	s := &Server{
		app:      app,
		config:   cfg,
		metrics:  m,
		handlers: handlers,
		logger:   logger,
	}
	if cfg.RateLimit.Enabled {
		s.rateLimiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	s.setupMiddlewares()
	s.setupRoutes()

	return s
}

// App exposes the fiber app, e.g. for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// setupMiddlewares - настройка middleware
func (s *Server) setupMiddlewares() {
	s.app.Use(middleware.Recovery(s.logger))
	s.app.Use(middleware.Logger(s.logger))
	if s.metrics != nil {
		s.app.Use(middleware.Metrics(s.metrics))
	}
	s.app.Use(middleware.CORS(s.config.Server.CORSOrigins))
	s.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	s.app.Use(middleware.Correlation())
}

// setupRoutes - настройка маршрутов
func (s *Server) setupRoutes() {
	// Swagger documentation route
	s.app.Get("/swagger/*", fiberSwagger.WrapHandler)

	if s.metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}

	api := s.app.Group("/api/v1")

	// Health check
	api.Get("/health", s.handlers.Health.Health)

	if s.rateLimiter != nil {
		api.Use(s.rateLimiter.Handler())
	}

	// Board
	api.Get("/board/:date", s.handlers.Board.GetDay)
	api.Get("/board/:date/unassigned", s.handlers.Board.Unassigned)
	api.Get("/board/:date/projection", s.handlers.Board.Projection)

	// Transports
	transports := api.Group("/transports")
	transports.Get("/", s.handlers.Transport.List)
	transports.Post("/", s.handlers.Transport.Create)
	transports.Get("/:id", s.handlers.Transport.Get)
	transports.Put("/:id/plan", s.handlers.Transport.Replan)
	transports.Put("/:id/eta", s.handlers.Transport.SetETA)
	transports.Put("/:id/notes", s.handlers.Transport.UpdateNotes)

	// Lifecycle
	transports.Post("/:id/send", s.handlers.Lifecycle.SendToDriver)
	transports.Post("/:id/complete", s.handlers.Lifecycle.Complete)
	transports.Post("/:id/reopen", s.handlers.Lifecycle.Reopen)
	transports.Post("/:id/hold", s.handlers.Lifecycle.Hold)
	transports.Post("/:id/reactivate", s.handlers.Lifecycle.Reactivate)
	transports.Delete("/:id", s.handlers.Lifecycle.Delete)
	transports.Get("/:id/cut/preview", s.handlers.Lifecycle.PreviewCut)
	transports.Post("/:id/cut", s.handlers.Lifecycle.Cut)
	transports.Post("/:id/restore", s.handlers.Lifecycle.Restore)

	// Assignment
	transports.Put("/:id/assignment", s.handlers.Assignment.Assign)
	transports.Post("/:id/move", s.handlers.Assignment.Move)
	transports.Put("/:id/trailer", s.handlers.Assignment.BindTrailer)

	// Slots
	slots := api.Group("/slots")
	slots.Post("/", s.handlers.Slot.Create)
	slots.Post("/reorder", s.handlers.Assignment.ReorderSlots)
	slots.Delete("/:id", s.handlers.Slot.Delete)
	slots.Put("/:id/note", s.handlers.Slot.UpdateStartNote)
	slots.Put("/:id/driver", s.handlers.Assignment.BindDriver)
	slots.Put("/:id/truck", s.handlers.Assignment.BindTruck)

	// Resources
	api.Get("/drivers", s.handlers.Resource.ListDrivers)
	api.Post("/drivers", s.handlers.Resource.CreateDriver)
	api.Get("/drivers/:id", s.handlers.Resource.GetDriver)
	api.Put("/drivers/:id", s.handlers.Resource.UpdateDriver)
	api.Delete("/drivers/:id", s.handlers.Resource.DeleteDriver)

	api.Get("/trucks", s.handlers.Resource.ListTrucks)
	api.Post("/trucks", s.handlers.Resource.CreateTruck)
	api.Get("/trucks/:id", s.handlers.Resource.GetTruck)
	api.Put("/trucks/:id", s.handlers.Resource.UpdateTruck)
	api.Delete("/trucks/:id", s.handlers.Resource.DeleteTruck)

	api.Get("/trailers", s.handlers.Resource.ListTrailers)
	api.Post("/trailers", s.handlers.Resource.CreateTrailer)
	api.Get("/trailers/:id", s.handlers.Resource.GetTrailer)
	api.Put("/trailers/:id", s.handlers.Resource.UpdateTrailer)
	api.Delete("/trailers/:id", s.handlers.Resource.DeleteTrailer)
}

// Start - запуск HTTP сервера
func (s *Server) Start() error {
	addr := s.config.GetServerAddr()
	s.logger.Info("Starting HTTP server", zap.String("address", addr))
	return s.app.Listen(addr)
}

// RunMaintenance sweeps idle rate limiter entries until ctx ends.
func (s *Server) RunMaintenance(ctx context.Context) {
	if s.rateLimiter == nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.rateLimiter.Cleanup()
		}
	}
}

// Shutdown - graceful shutdown HTTP сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// customErrorHandler - кастомный обработчик ошибок
func customErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error("HTTP Error",
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		)

		if code == fiber.StatusInternalServerError {
			return utils.SendError(c, err)
		}
		return c.Status(code).JSON(fiber.Map{
			"error": fiber.Map{
				"kind":    "invalid_input",
				"code":    "HTTP_ERROR",
				"message": err.Error(),
			},
		})
	}
}
