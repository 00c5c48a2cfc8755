package replica

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/domain"
)

// ErrNotConnected is returned by UpdateWatch without a live connection.
var ErrNotConnected = errors.New("push connection is not established")

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

// WSSubscriber receives pushed change events over a websocket.
type WSSubscriber struct {
	url    string
	dialer *websocket.Dialer
	logger *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSSubscriber creates a subscriber for the push endpoint, e.g.
// ws://localhost:8081/ws.
func NewWSSubscriber(url string, logger *zap.Logger) *WSSubscriber {
	return &WSSubscriber{
		url:    url,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: logger,
	}
}

// Subscribe dials, announces the watched dates and streams events.
func (s *WSSubscriber) Subscribe(ctx context.Context, dates []domain.Date) (<-chan domain.ChangeEvent, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, err
	}
	if err := writeWatch(conn, dates); err != nil {
		_ = conn.Close()
		return nil, err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	out := make(chan domain.ChangeEvent, 64)
	done := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	go func() {
		defer close(out)
		defer close(done)
		defer s.release(conn)

		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPingHandler(func(data string) error {
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		})

		for {
			var e domain.ChangeEvent
			if err := conn.ReadJSON(&e); err != nil {
				if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Warn("Push connection lost", zap.Error(err))
				}
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()

	s.logger.Info("Push connection established",
		zap.String("url", s.url),
		zap.Int("dates", len(dates)))
	return out, nil
}

// UpdateWatch replaces the dates of the live connection.
func (s *WSSubscriber) UpdateWatch(dates []domain.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	return writeWatch(s.conn, dates)
}

func (s *WSSubscriber) release(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == conn {
		s.conn = nil
	}
	_ = conn.Close()
}

func writeWatch(conn *websocket.Conn, dates []domain.Date) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(domain.WatchMessage{Type: domain.PushWatchType, Dates: dates})
}
