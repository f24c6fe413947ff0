package publish

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/nvr-ai/go-ppg/controller"
	"github.com/pkg/errors"
)

// clientBuffer is the number of displays queued per websocket client.
const clientBuffer = 64

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newWSClient(conn *websocket.Conn, messageType int) *wsClient {
	c := &wsClient{conn: conn, send: make(chan []byte, clientBuffer)}
	go c.writePump(messageType)
	return c
}

func (c *wsClient) writePump(messageType int) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(messageType, msg); err != nil {
			return
		}
	}
}

// Hub streams displays to websocket clients. It is both a controller.Sink
// and the http.Handler clients connect to.
type Hub struct {
	codec    Codec
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]bool
	last    []byte
}

// NewHub creates a hub. checkOrigin may be nil to accept same-origin requests only.
func NewHub(codec Codec, checkOrigin func(r *http.Request) bool) *Hub {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &Hub{
		codec:    codec,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		clients:  make(map[*wsClient]bool),
	}
}

func (h *Hub) Name() string { return "websocket" }

func (h *Hub) messageType() int {
	if h.codec.Name() == "json" {
		return websocket.TextMessage
	}
	return websocket.BinaryMessage
}

// ServeHTTP upgrades the request and registers the client. The latest
// display is sent immediately so the client renders without waiting.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("publish: websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newWSClient(conn, h.messageType())
	h.mu.Lock()
	if h.last != nil {
		c.send <- h.last
	}
	h.clients[c] = true
	h.mu.Unlock()
	slog.Info("publish: websocket client connected", "remote", r.RemoteAddr)

	go func() {
		defer func() {
			h.remove(c)
			slog.Info("publish: websocket client disconnected", "remote", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Publish broadcasts d. Clients that cannot keep up are disconnected.
//
// Sends happen under the hub lock, so a client cannot be closed by its
// reader goroutine while a display is being queued for it.
func (h *Hub) Publish(d controller.Display) error {
	data, err := h.codec.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "websocket: marshal display")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = data
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slog.Warn("publish: websocket client too slow, disconnecting")
			h.removeLocked(c)
		}
	}
	return nil
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked requires h.mu.
func (h *Hub) removeLocked(c *wsClient) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}
