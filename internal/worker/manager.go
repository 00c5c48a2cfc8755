package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// defaultShutdownTimeout - максимальное время ожидания завершения воркеров
	defaultShutdownTimeout = 30 * time.Second
)

// WorkerManager управляет несколькими воркерами
type WorkerManager struct {
	workers         []Worker
	logger          *zap.Logger
	shutdownTimeout time.Duration
	wg              sync.WaitGroup
	mu              sync.Mutex
	started         bool
}

// Option настраивает WorkerManager
type Option func(*WorkerManager)

// WithShutdownTimeout задаёт время ожидания остановки воркеров
func WithShutdownTimeout(d time.Duration) Option {
	return func(m *WorkerManager) {
		if d > 0 {
			m.shutdownTimeout = d
		}
	}
}

// NewWorkerManager создает новый WorkerManager
func NewWorkerManager(logger *zap.Logger, opts ...Option) *WorkerManager {
	m := &WorkerManager{
		workers:         make([]Worker, 0),
		logger:          logger,
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register регистрирует воркер. Регистрация после Start не допускается.
func (m *WorkerManager) Register(w Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("cannot register worker %q: manager already started", w.Name())
	}
	for _, existing := range m.workers {
		if existing.Name() == w.Name() {
			return fmt.Errorf("worker %q already registered", w.Name())
		}
	}

	m.workers = append(m.workers, w)
	m.logger.Info("Worker registered", zap.String("name", w.Name()))
	return nil
}

// Names возвращает имена зарегистрированных воркеров
func (m *WorkerManager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.workers))
	for i, w := range m.workers {
		names[i] = w.Name()
	}
	return names
}

// Start запускает все зарегистрированные воркеры
func (m *WorkerManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if len(m.workers) == 0 {
		m.mu.Unlock()
		return fmt.Errorf("no workers registered")
	}
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("workers already started")
	}
	m.started = true
	workers := make([]Worker, len(m.workers))
	copy(workers, m.workers)
	m.mu.Unlock()

	m.logger.Info("Starting workers", zap.Int("count", len(workers)))

	// Запускаем каждый воркер в отдельной горутине
	for _, worker := range workers {
		m.wg.Add(1)
		go func(w Worker) {
			defer m.wg.Done()

			m.logger.Info("Starting worker", zap.String("name", w.Name()))
			if err := w.Start(ctx); err != nil && err != context.Canceled {
				m.logger.Error("Worker failed",
					zap.String("name", w.Name()),
					zap.Error(err))
			}
		}(worker)
	}

	return nil
}

// Stop останавливает все воркеры с timeout
func (m *WorkerManager) Stop() error {
	m.mu.Lock()
	workers := make([]Worker, len(m.workers))
	copy(workers, m.workers)
	m.mu.Unlock()

	m.logger.Info("Stopping workers", zap.Int("count", len(workers)))

	// Останавливаем все воркеры (сигнализируем о завершении)
	for _, worker := range workers {
		if err := worker.Stop(); err != nil {
			m.logger.Error("Failed to stop worker",
				zap.String("name", worker.Name()),
				zap.Error(err))
		}
	}

	// Ждём завершения с timeout
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All workers stopped gracefully")
	case <-time.After(m.shutdownTimeout):
		m.logger.Warn("Workers shutdown timed out, some events may not have been relayed",
			zap.Duration("timeout", m.shutdownTimeout))
		return fmt.Errorf("workers shutdown timed out after %v", m.shutdownTimeout)
	}

	return nil
}
