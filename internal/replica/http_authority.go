package replica

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/errors"
	"github.com/dispatch-board/internal/usecase/dto"
)

// CorrelationHeader carries the client mutation id to the API.
const CorrelationHeader = domain.CorrelationHeader

// HTTPConfig - настройки клиента API доски
type HTTPConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

type envelope[T any] struct {
	Data  T                `json:"data"`
	Error *errors.AppError `json:"error"`
}

// HTTPAuthority talks to the board HTTP API.
type HTTPAuthority struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// NewHTTPAuthority создает клиент API доски
func NewHTTPAuthority(cfg HTTPConfig, logger *zap.Logger) *HTTPAuthority {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPAuthority{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     logger,
	}
}

// GetDay возвращает доску на дату
func (c *HTTPAuthority) GetDay(ctx context.Context, date domain.Date) (*domain.BoardDay, error) {
	var out envelope[*domain.BoardDay]
	if err := c.do(ctx, http.MethodGet, "/api/v1/board/"+date.String(), "", nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return nil, fmt.Errorf("board API returned no day for %s", date)
	}
	return out.Data, nil
}

// Mutate выполняет мутацию и возвращает зафиксированные события
func (c *HTTPAuthority) Mutate(ctx context.Context, req MutationRequest) ([]domain.ChangeEvent, error) {
	var out envelope[dto.MutationResponse]
	if err := c.do(ctx, req.Method, req.Path, req.CorrelationID, req.Body, &out); err != nil {
		return nil, err
	}
	return out.Data.Changes, nil
}

func (c *HTTPAuthority) do(ctx context.Context, method, path, correlationID string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		c.logger.Error("Failed to create request", zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if correlationID != "" {
		req.Header.Set(CorrelationHeader, correlationID)
	}

	c.logger.Debug("Calling board API",
		zap.String("method", method),
		zap.String("url", url),
		zap.String("correlation_id", correlationID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to execute request", zap.Error(err))
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var failed envelope[json.RawMessage]
		if jsonErr := json.Unmarshal(data, &failed); jsonErr == nil && failed.Error != nil {
			// правило, отклонившее мутацию, возвращается вызывающему как есть
			failed.Error.StatusCode = resp.StatusCode
			return failed.Error
		}
		c.logger.Error("Board API returned error",
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", string(data)))
		return fmt.Errorf("board API error: status %d, body: %s", resp.StatusCode, string(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Error("Failed to decode response", zap.Error(err))
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
