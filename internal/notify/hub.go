// Package notify pushes work-order events to connected WebSocket
// clients so dashboards update without polling.
package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	EventWorkOrderCreated       = "WORK_ORDER_CREATED"
	EventWorkOrderStatusChanged = "WORK_ORDER_STATUS_CHANGED"
	EventWorkOrderAssigned      = "WORK_ORDER_ASSIGNED"
)

type Event struct {
	Type        string    `json:"type"`
	WorkOrderID string    `json:"workOrderId"`
	Data        any       `json:"data,omitempty"`
	UserID      string    `json:"userId,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	lg      *zap.SugaredLogger
	up      websocket.Upgrader
}

func NewHub(lg *zap.SugaredLogger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		lg:      lg,
		up: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Broadcast fans the event out to every connected client. Clients whose
// send buffer is full are dropped rather than blocking the caller.
func (h *Hub) Broadcast(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.lg.Errorw("marshal event failed", "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			close(c.send)
			delete(h.clients, c)
		}
	}
}

// ServeHTTP upgrades the request and keeps the connection until the
// peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.up.Upgrade(w, r, nil)
	if err != nil {
		h.lg.Warnw("websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 16)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()
	go h.readLoop(c)
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readLoop discards inbound frames; the socket is push-only. It exists
// to notice closes and unregister the client.
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ClientCount is used by tests and the health endpoint.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
