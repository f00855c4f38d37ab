package api

import (
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/refresh"
)

// Hub pushes every refreshed view to connected websocket clients. It is
// the live render sink: a browser keeps its gauges and chart current
// without polling.
type Hub struct {
	mu       sync.Mutex
	upgrader websocket.Upgrader
	clients  map[string]*websocket.Conn
	closed   bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients: make(map[string]*websocket.Conn),
	}
}

// HandleWS upgrades the connection and registers the client.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	id := uuid.NewString()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[id] = conn
	h.mu.Unlock()

	log.Printf("render client %s connected", id)

	// Drain the read side; unregister on close.
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, id)
			h.mu.Unlock()
			conn.Close()
			log.Printf("render client %s disconnected", id)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Render implements refresh.Sink by broadcasting the output as JSON.
// A failed client is dropped, never retried.
func (h *Hub) Render(out *refresh.Output) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conn := range h.clients {
		if err := conn.WriteJSON(out); err != nil {
			log.Printf("render push to %s failed: %v", id, err)
			conn.Close()
			delete(h.clients, id)
		}
	}
}

// ClientCount returns the number of connected render clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, conn := range h.clients {
		conn.Close()
		delete(h.clients, id)
	}
}
