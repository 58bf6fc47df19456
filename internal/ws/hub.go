package ws

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/schoolbell-dev/schoolbell/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// client wraps a connection with a write mutex. gorilla/websocket allows
// only one concurrent writer per connection, and pushes arrive from the
// dispatcher, the sweeper and the ping ticker at once.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(payload)
}

func (c *client) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// Hub multiplexes all realtime subscribers over a single connection set
// keyed by user ID. Admin connections are additionally registered in a
// broadcast group that receives delivery-log events.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[*client]bool
	admins  map[*client]bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[uint]map[*client]bool),
		admins:  make(map[*client]bool),
	}
}

// Connected reports whether the user has at least one live connection.
func (h *Hub) Connected(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// PushToUser writes the payload to every live connection of the user.
// Returns an error when the user has no live connection or every write
// failed.
func (h *Hub) PushToUser(userID uint, payload interface{}) error {
	h.mu.RLock()
	conns, exists := h.clients[userID]
	if !exists || len(conns) == 0 {
		h.mu.RUnlock()
		return fmt.Errorf("no active connection for user %d", userID)
	}

	// Copy the connection set to avoid holding the lock during writes.
	connsCopy := make([]*client, 0, len(conns))
	for c := range conns {
		connsCopy = append(connsCopy, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range connsCopy {
		if err := c.writeJSON(payload); err != nil {
			logger.Log.Warnf("WebSocket push to user %d failed: %v", userID, err)
			h.remove(userID, c)
			c.conn.Close()
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return fmt.Errorf("no active connection for user %d", userID)
	}
	return nil
}

// BroadcastToAdmins fans the payload out to the admin group. Failures are
// logged and the connection dropped; broadcast is best-effort.
func (h *Hub) BroadcastToAdmins(payload interface{}) {
	h.mu.RLock()
	connsCopy := make([]*client, 0, len(h.admins))
	for c := range h.admins {
		connsCopy = append(connsCopy, c)
	}
	h.mu.RUnlock()

	for _, c := range connsCopy {
		if err := c.writeJSON(payload); err != nil {
			logger.Log.Warnf("WebSocket admin broadcast failed: %v", err)
			h.removeAdmin(c)
			c.conn.Close()
		}
	}
}

func (h *Hub) register(userID uint, c *client, admin bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]bool)
	}
	h.clients[userID][c] = true

	if admin {
		h.admins[c] = true
	}
}

func (h *Hub) remove(userID uint, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, exists := h.clients[userID]; exists {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.clients, userID)
		}
	}
	delete(h.admins, c)
}

func (h *Hub) removeAdmin(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.admins, c)
}

// Serve owns the connection until it closes: registers it, sends the
// welcome message, keeps the ping/pong cycle alive and drains reads.
func (h *Hub) Serve(conn *websocket.Conn, userID uint, admin bool) {
	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Log.Warnf("Failed to set initial read deadline: %v", err)
		conn.Close()
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c := &client{conn: conn}
	h.register(userID, c, admin)

	defer func() {
		h.remove(userID, c)
		conn.Close()
		logger.Log.Debugf("WebSocket connection closed for user %d", userID)
	}()

	if err := c.writeJSON(map[string]string{
		"type":    "connected",
		"message": "WebSocket connection established",
	}); err != nil {
		logger.Log.Warnf("Failed to send welcome message: %v", err)
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := c.ping(); err != nil {
					return
				}
			}
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			break
		}

		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Warnf("WebSocket error for user %d: %v", userID, err)
			}
			break
		}
	}
}
