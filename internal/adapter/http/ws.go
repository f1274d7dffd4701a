package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/couchcryptid/quake-sync/internal/dashboard"
	"github.com/couchcryptid/quake-sync/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
	pulseBuffer    = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origins are enforced by the session token, not the browser origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub fans dashboard events out to connected WebSocket clients. It
// implements dashboard.Broadcaster and never blocks. Pulses go through a
// separate buffer and are dropped when it is full. A client that cannot
// keep up with state events is disconnected; on reconnect it receives a
// fresh snapshot.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	logger  *slog.Logger
	metrics *observability.Metrics
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	pulses chan []byte
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		pulses: make(chan []byte, pulseBuffer),
	}
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
		metrics: metrics,
	}
}

func (h *Hub) Broadcast(evt dashboard.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("encode event", "type", evt.Type, "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if evt.Type == dashboard.EventPulse {
			select {
			case c.pulses <- data:
			default:
			}
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Warn("disconnecting slow websocket client", "type", evt.Type)
			delete(h.clients, c)
			close(c.send)
		}
	}
	h.metrics.WebsocketClients.Set(float64(len(h.clients)))
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.metrics.WebsocketClients.Set(0)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.WebsocketClients.Set(float64(len(h.clients)))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.metrics.WebsocketClients.Set(float64(len(h.clients)))
	}
}

// stream upgrades the connection and sends the current view followed by
// every later event.
func (h *handlers) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(conn)
	initial, err := json.Marshal(dashboard.Event{Type: dashboard.EventSnapshot, Data: h.state.View()})
	if err != nil {
		h.logger.Error("encode initial view", "error", err)
		_ = conn.Close()
		return
	}
	c.send <- initial

	if !h.hub.register(c) {
		_ = conn.Close()
		return
	}
	if s, ok := sessionFrom(r.Context()); ok {
		h.logger.Debug("websocket client connected", "user_id", s.User.UserID)
	}

	go c.writePump()
	go c.readPump(h.hub)
}

// readPump discards client messages and unregisters the client when the
// connection drops.
func (c *client) readPump(hub *Hub) {
	defer func() {
		hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case msg := <-c.pulses:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
