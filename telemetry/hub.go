package telemetry

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nasa-jpl/pdosim/fleet"
)

// writeWait bounds each write so a slow client cannot stall the tick loop
const writeWait = 50 * time.Millisecond

// Hub fans snapshots out to WebSocket clients
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewHub returns a hub accepting connections from any origin
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

// ServeHTTP upgrades the request and holds the connection until the client leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("telemetry: upgrade:", err)
		return
	}
	defer ws.Close()

	h.mu.Lock()
	h.clients[ws] = true
	h.mu.Unlock()

	for {
		// clients do not send anything, reading only detects the close
		if _, _, err := ws.ReadMessage(); err != nil {
			h.mu.Lock()
			delete(h.clients, ws)
			h.mu.Unlock()
			return
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast writes v as JSON to every client, dropping clients that fail
func (h *Hub) Broadcast(v interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteJSON(v); err != nil {
			log.Printf("telemetry: websocket write: %v", err)
			c.Close()
			delete(h.clients, c)
		}
	}
}

// Hook adapts Broadcast to a fleet.Runner hook
func (h *Hub) Hook(f *fleet.Fleet, _ fleet.Report) {
	if h.Clients() == 0 {
		return
	}
	h.Broadcast(f.Snapshot())
}
