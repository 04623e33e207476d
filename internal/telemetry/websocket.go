package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HubConfig holds WebSocket stream settings.
type HubConfig struct {
	SendBuffer   int           // events queued per subscriber
	PingInterval time.Duration // keepalive ping period
	WriteTimeout time.Duration // per-frame write deadline
}

// DefaultHubConfig returns default stream settings.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SendBuffer:   256,
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Hub streams audit events as JSON text frames to every connected
// WebSocket subscriber. A subscriber whose queue is full misses the event;
// Publish never blocks on a slow reader.
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*subscriber]struct{}
	closed  bool
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// NewHub creates a hub with no subscribers.
func NewHub(config HubConfig, logger *zap.Logger) *Hub {
	if config.SendBuffer <= 0 {
		config.SendBuffer = DefaultHubConfig().SendBuffer
	}
	if config.PingInterval <= 0 {
		config.PingInterval = DefaultHubConfig().PingInterval
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultHubConfig().WriteTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger:  logger.Named("events"),
		clients: make(map[*subscriber]struct{}),
	}
}

// Publish implements Publisher.
func (h *Hub) Publish(_ context.Context, ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
	return nil
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until the peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &subscriber{
		conn: conn,
		send: make(chan []byte, h.config.SendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("subscriber connected", zap.String("remote", r.RemoteAddr))

	go h.readLoop(c)
	h.writeLoop(c)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = conn.Close()
	h.logger.Debug("subscriber disconnected", zap.String("remote", r.RemoteAddr))
}

// readLoop discards inbound frames; a read error means the peer is gone.
func (h *Hub) readLoop(c *subscriber) {
	defer c.stop()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *subscriber) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close sends a close frame to every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	deadline := time.Now().Add(h.config.WriteTimeout)
	for c := range h.clients {
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		c.stop()
	}
}

var (
	_ Publisher    = (*Hub)(nil)
	_ http.Handler = (*Hub)(nil)
)
