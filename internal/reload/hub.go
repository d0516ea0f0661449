// Package reload serves the built project during development and tells
// connected browsers to reload after every rebuild.
package reload

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/magic-framework/magic/internal/logging"
	"github.com/magic-framework/magic/internal/validation"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Message types sent to the browser.
const (
	MessageReload = "reload"
	MessageError  = "error"
)

// Message is sent to every connected browser.
type Message struct {
	Type        string    `json:"type"`
	Diagnostics []string  `json:"diagnostics,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub tracks connected browsers and fans messages out to them.
type Hub struct {
	allowedOrigins []string
	logger         logging.Logger

	clients      map[*websocket.Conn]*client
	clientsMutex sync.RWMutex
	broadcast    chan []byte
	register     chan *client
	unregister   chan *websocket.Conn
}

// NewHub creates a Hub accepting connections from allowedOrigins, given as
// host:port or full origin URLs.
func NewHub(allowedOrigins []string, logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Hub{
		allowedOrigins: allowedOrigins,
		logger:         logger.WithComponent("reload"),
		clients:        make(map[*websocket.Conn]*client),
		broadcast:      make(chan []byte, 16),
		register:       make(chan *client),
		unregister:     make(chan *websocket.Conn),
	}
}

// ClientCount returns the number of connected browsers.
func (h *Hub) ClientCount() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for every connected browser. It never blocks; when
// the queue is full the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(context.Background(), err, "Failed to marshal message")
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn(context.Background(), nil, "Reload queue full, dropping message", "type", msg.Type)
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clientsMutex.Lock()
			h.clients[c.conn] = c
			count := len(h.clients)
			h.clientsMutex.Unlock()
			h.logger.Debug(ctx, "Client connected", "total", count)

		case conn := <-h.unregister:
			h.clientsMutex.Lock()
			if c, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				close(c.send)
			}
			count := len(h.clients)
			h.clientsMutex.Unlock()
			h.logger.Debug(ctx, "Client disconnected", "total", count)

		case message := <-h.broadcast:
			h.clientsMutex.Lock()
			for conn, c := range h.clients {
				select {
				case c.send <- message:
				default:
					// Client's send channel is full
					delete(h.clients, conn)
					close(c.send)
				}
			}
			h.clientsMutex.Unlock()
		}
	}
}

func (h *Hub) closeAll() {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()

	for conn, c := range h.clients {
		delete(h.clients, conn)
		close(c.send)
	}
}

// ServeHTTP upgrades the request to a websocket and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := validation.ValidateOrigin(r.Header.Get("Origin"), h.allowedOrigins); err != nil {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originHosts(h.allowedOrigins),
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade error")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	select {
	case h.register <- c:
	case <-r.Context().Done():
		conn.Close(websocket.StatusGoingAway, "")
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump keeps the connection alive and notices when the browser leaves.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c.conn:
		case <-time.After(writeWait):
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		readCtx, cancel := context.WithTimeout(context.Background(), pongWait)
		_, _, err := c.conn.Read(readCtx)
		cancel()

		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && status != -1 {
				c.hub.logger.Debug(context.Background(), "WebSocket closed", "status", status.String())
			}
			return
		}
	}
}

// writePump pumps messages to the websocket connection
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
