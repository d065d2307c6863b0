package devserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// upgrader accepts any origin; the dev server is never exposed beyond
// localhost so origin checks would only get in the way.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is one live-reload event, serialised as a single JSON line
// (spec §6 wire format).
type Message struct {
	Type   string            `json:"type"`
	Paths  []string          `json:"paths,omitempty"`
	Errors []bengalerrView   `json:"errors,omitempty"`
}

// bengalerrView is the wire projection of a bengalerr.Error: only the
// fields a browser overlay needs to locate and describe the failure.
type bengalerrView struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

func reloadMessage(paths []string) Message {
	return Message{Type: "reload", Paths: paths}
}

func buildErrorMessage(errs []bengalerrView) Message {
	return Message{Type: "build_error", Errors: errs}
}

var heartbeatMessage = Message{Type: "heartbeat"}

const heartbeatInterval = 30 * time.Second

// Hub maintains the set of connected live-reload clients and broadcasts
// JSON messages to all of them, grounded on the teacher's
// internal/server/websocket.go Hub, generalised from a bare "reload"
// string to the spec's structured {type,...} message shapes.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]bool
	logger  *zap.Logger
	done    chan struct{}
	once    sync.Once
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty Hub and starts its heartbeat loop.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		clients: make(map[*client]bool),
		logger:  logger,
		done:    make(chan struct{}),
	}
	go h.heartbeatLoop()
	return h
}

func (h *Hub) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.Broadcast(heartbeatMessage)
		case <-h.done:
			return
		}
	}
}

// Stop terminates the heartbeat loop and closes every connected client.
func (h *Hub) Stop() {
	h.once.Do(func() {
		close(h.done)
	})
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		c.conn.Close()
	}
	h.clients = make(map[*client]bool)
}

// Broadcast marshals msg and sends it to every connected client. Clients
// whose send buffer is full are dropped rather than blocking the caller.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("devserver: marshal live-reload message", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("devserver: dropping slow live-reload client")
			delete(h.clients, c)
			close(c.send)
			c.conn.Close()
		}
	}
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleWS upgrades an HTTP request to a WebSocket connection and
// registers it with the hub until the client disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("devserver: websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 16)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.removeClient(c)
			return
		}
	}
}

// readPump drains and discards client frames purely to detect
// disconnects; the protocol is server-to-client only.
func (h *Hub) readPump(c *client) {
	defer h.removeClient(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
	}
}
