package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server - отдельный HTTP listener для /ws
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

func NewServer(addr string, hub *Hub, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start blocks until the listener stops; a graceful shutdown is not an error.
func (s *Server) Start() error {
	s.logger.Info("Starting WebSocket server", zap.String("address", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down WebSocket server")
	return s.srv.Shutdown(ctx)
}
