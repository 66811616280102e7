// Package notify pushes competition status changes to websocket clients.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"alchemy/internal/competition/model"
	"alchemy/pkg/utils/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const defaultWriteTimeout = 5 * time.Second

// Message is the frame written to subscribers.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type client struct {
	conn *websocket.Conn
	dao  string
	mu   sync.Mutex
}

func (c *client) write(data []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans status changes out to connected websocket clients. A client
// registered with a DAO only receives that DAO's competitions.
type Hub struct {
	mu           sync.RWMutex
	clients      map[*websocket.Conn]*client
	writeTimeout time.Duration
}

// NewHub creates an empty hub using the default write timeout.
func NewHub() *Hub {
	return &Hub{
		clients:      make(map[*websocket.Conn]*client),
		writeTimeout: defaultWriteTimeout,
	}
}

// Add registers conn. An empty dao subscribes to every competition.
func (h *Hub) Add(conn *websocket.Conn, dao string) {
	h.mu.Lock()
	h.clients[conn] = &client{conn: conn, dao: dao}
	total := len(h.clients)
	h.mu.Unlock()
	logger.Debug(context.Background(), "ws client connected", zap.String("dao", dao), zap.Int("clients", total))
}

// Remove unregisters and closes conn.
func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()
	if ok {
		_ = conn.Close()
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends rec to every matching client. Clients whose write fails
// are dropped.
func (h *Hub) Broadcast(rec model.StatusRecord) {
	data, err := json.Marshal(Message{Type: model.EventStatusChanged, Data: rec})
	if err != nil {
		logger.Error(context.Background(), "ws marshal failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		if c.dao == "" || c.dao == rec.DAO {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(data, h.writeTimeout); err != nil {
			logger.Warn(context.Background(), "ws write failed, dropping client",
				zap.String("competition_id", rec.ID),
				zap.Error(err),
			)
			h.Remove(c.conn)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*websocket.Conn]*client)
	h.mu.Unlock()
	for conn := range clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
}
