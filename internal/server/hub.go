package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ProgressMessage is pushed to every WebSocket client.
type ProgressMessage struct {
	Type       string `json:"type"` // "progress", "log", "complete", "error"
	JobID      string `json:"jobId"`
	Message    string `json:"message"`
	Percentage int    `json:"percentage,omitempty"`
	Current    int    `json:"current,omitempty"`
	Total      int    `json:"total,omitempty"`
	Stage      string `json:"stage,omitempty"`
}

const (
	writeWait = 5 * time.Second
	// sendBuffer messages may queue per client before it is dropped.
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	conn *websocket.Conn
	send chan ProgressMessage
}

// Hub fans progress messages out to connected WebSocket clients. Each
// client has its own writer, so a slow client never blocks Broadcast.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	log     *slog.Logger
}

func newHub(log *slog.Logger) *Hub {
	return &Hub{clients: make(map[*client]struct{}), log: log}
}

// Broadcast queues msg for every client without blocking. A client whose
// queue is full is disconnected.
func (h *Hub) Broadcast(msg ProgressMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn("server: websocket client too slow, dropped")
			h.dropLocked(c)
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("server: websocket client connected", "clients", n)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	h.dropLocked(c)
	h.mu.Unlock()
}

// dropLocked must be called with h.mu held.
func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	c.conn.Close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.dropLocked(c)
	}
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("server: websocket upgrade", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan ProgressMessage, sendBuffer)}
	h.add(c)
	defer h.remove(c)
	go h.writePump(c)

	// Reads only detect the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.log.Debug("server: websocket client disconnected", "error", err)
			return
		}
	}
}

// writePump is the only writer of c.conn.
func (h *Hub) writePump(c *client) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			h.log.Debug("server: websocket write", "error", err)
			h.remove(c)
			return
		}
	}
}
