package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"pricefeed/internal/domain"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Hub fans aggregated price updates out to websocket subscribers.
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
	last     []byte
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: slog.Default(),
	}
}

// Broadcast sends the result to every client, dropping clients that fail.
func (h *Hub) Broadcast(result *domain.AggregateResult) {
	msg, err := json.Marshal(result)
	if err != nil {
		h.logger.Error("marshal price update", slog.Any("err", err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = msg
	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("websocket write failed, dropping client", slog.Any("err", err))
			c.Close()
			delete(h.clients, c)
		}
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the connection. New clients
// receive the latest update immediately.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("err", err))
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	if h.last != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.TextMessage, h.last)
	}
	h.mu.Unlock()

	go h.readLoop(conn)
}

// readLoop discards client messages and unregisters the client on close.
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
	}
}
