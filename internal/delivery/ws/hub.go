package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dispatch-board/internal/board"
	"github.com/dispatch-board/internal/domain"
	"github.com/dispatch-board/internal/pkg/metrics"
)

// Config - настройки push-хаба
type Config struct {
	FeedBuffer int           // буфер подписки хаба на фид
	SendBuffer int           // очередь исходящих сообщений клиента
	PingPeriod time.Duration // должен быть меньше таймаута pong
	WriteWait  time.Duration
}

func DefaultConfig() Config {
	return Config{
		FeedBuffer: 1024,
		SendBuffer: 256,
		PingPeriod: 54 * time.Second,
		WriteWait:  10 * time.Second,
	}
}

// Hub pushes committed change events to connected board views. Each client
// names the dates it shows with a watch message and only receives events
// visible on those dates; date-less events go to everyone.
//
// A client that cannot keep up is disconnected. When the hub itself falls
// behind the feed every client is disconnected, since each of them missed
// events; they reconnect and reload.
type Hub struct {
	feed     *board.Feed
	cfg      Config
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[*Client]bool
}

// Client is one websocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu    sync.RWMutex
	watch map[domain.Date]bool
}

func NewHub(feed *board.Feed, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Hub {
	def := DefaultConfig()
	if cfg.FeedBuffer <= 0 {
		cfg.FeedBuffer = def.FeedBuffer
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = def.PingPeriod
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	return &Hub{
		feed: feed,
		cfg:  cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// доступ ограничивается на уровне сети, не origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		metrics: m,
		logger:  logger.Named("ws"),
		clients: make(map[*Client]bool),
	}
}

// Run forwards feed events to clients until ctx ends.
func (h *Hub) Run(ctx context.Context) error {
	h.logger.Info("Starting push hub")
	defer h.closeAll()

	for {
		sub := h.feed.Subscribe(h.cfg.FeedBuffer)
		lost := h.forward(ctx, sub)
		sub.Close()
		if !lost {
			h.logger.Info("Push hub stopped")
			return ctx.Err()
		}
		h.logger.Warn("Push hub fell behind the feed, dropping clients",
			zap.Int("clients", h.ClientCount()))
		h.closeAll()
	}
}

// forward reports true when the subscription was closed by the feed.
func (h *Hub) forward(ctx context.Context, sub *board.Subscription) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case evt, ok := <-sub.Events():
			if !ok {
				return true
			}
			h.broadcast(evt)
		}
	}
}

func (h *Hub) broadcast(evt domain.ChangeEvent) {
	message, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("Failed to marshal change event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !client.concerns(evt) {
			continue
		}
		select {
		case client.send <- message:
		default:
			// Client is slow, remove it
			h.logger.Warn("Push client fell behind, disconnecting",
				zap.String("remote", client.conn.RemoteAddr().String()))
			h.removeLocked(client)
		}
	}
}

// ServeHTTP upgrades the request and serves the client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, h.cfg.SendBuffer),
		watch: make(map[domain.Date]bool),
	}
	h.register(client)

	go client.writePump()
	client.readPump()
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WebSocketClients.Inc()
	}
	h.logger.Info("WebSocket client connected",
		zap.String("remote", c.conn.RemoteAddr().String()),
		zap.Int("total", total))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	removed := h.removeLocked(c)
	total := len(h.clients)
	h.mu.Unlock()
	if removed {
		h.logger.Info("WebSocket client disconnected", zap.Int("total", total))
	}
}

func (h *Hub) removeLocked(c *Client) bool {
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	close(c.send)
	if h.metrics != nil {
		h.metrics.WebSocketClients.Dec()
	}
	return true
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (c *Client) concerns(evt domain.ChangeEvent) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return evt.Concerns(c.watch)
}

func (c *Client) setWatch(set map[domain.Date]bool) {
	c.mu.Lock()
	c.watch = set
	c.mu.Unlock()
}

func (c *Client) watching(d domain.Date) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.watch[d]
}

func (c *Client) pongWait() time.Duration {
	return c.hub.cfg.PingPeriod * 10 / 9
}

// readPump applies watch messages until the connection fails
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(64 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	})

	for {
		var msg domain.WatchMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("WebSocket read failed", zap.Error(err))
			}
			return
		}
		if msg.Type != domain.PushWatchType {
			continue
		}
		c.setWatch(msg.WatchSet())
		c.hub.logger.Debug("Watch updated", zap.Int("dates", len(msg.Dates)))
	}
}

// writePump sends one event per frame plus periodic pings
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
