// Package tap streams dispatch activity to connected debug clients over
// WebSocket. Strictly observational: slow or dead clients are dropped, and
// nothing in the routing path waits on the tap.
package tap

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Record is one dispatch decision as seen by tap clients.
type Record struct {
	UpdateType string `json:"type"`
	Source     string `json:"source"`
	FromID     int64  `json:"from_id"`
	Module     string `json:"module"`
	Outcome    string `json:"outcome"`
	Status     int    `json:"status,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Hub accepts /tap WebSocket connections and broadcasts records to all of them.
type Hub struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewHub creates an empty tap hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			// The tap is for same-host debugging; the ops listener is
			// expected to be firewalled, not origin-checked.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the connection. Inbound
// frames are read and discarded so close handshakes and pings work.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("tap: upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()
	log.Printf("tap: client connected (%d total)", n)

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

// Publish broadcasts a record to every connected client. Write failures
// drop the client; they never propagate to the caller. Writes are serialized
// under the hub lock because WebSocket connections allow one writer at a time.
func (h *Hub) Publish(rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		log.Printf("tap: marshal record: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.conns {
		c.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			delete(h.conns, c)
			c.Close()
			log.Printf("tap: client disconnected (%d total)", len(h.conns))
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		c.Close()
		delete(h.conns, c)
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.conns[conn]
	if ok {
		delete(h.conns, conn)
	}
	n := len(h.conns)
	h.mu.Unlock()

	if ok {
		conn.Close()
		log.Printf("tap: client disconnected (%d total)", n)
	}
}
