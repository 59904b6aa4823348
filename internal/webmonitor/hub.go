package webmonitor

import (
	"net/http"
	"sync"
	"time"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/logger"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/metrics"
	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 200 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub pushes serialized ticks to websocket clients. A client whose
// write fails or times out is dropped.
type Hub struct {
	mu      sync.Mutex
	conns   map[*websocket.Conn]bool
	metrics *metrics.Metrics
}

func newHub(m *metrics.Metrics) *Hub {
	return &Hub{conns: make(map[*websocket.Conn]bool), metrics: m}
}

func (h *Hub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = true
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ClientConnected()
	}
}

func (h *Hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.conns[c]
	delete(h.conns, c)
	h.mu.Unlock()
	if ok && h.metrics != nil {
		h.metrics.ClientDisconnected()
	}
}

func (h *Hub) snapshot() []*websocket.Conn {
	h.mu.Lock()
	clients := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	return clients
}

// Len returns the number of connected websocket clients
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// broadcastText writes b to every client with a short deadline
func (h *Hub) broadcastText(b []byte) {
	for _, c := range h.snapshot() {
		_ = c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			logger.Debug("WebSocket", "Dropping client %s: %v", c.RemoteAddr(), err)
			_ = c.Close()
			h.remove(c)
		}
	}
}

// ServeHTTP upgrades the request and holds the connection until the
// client goes away. Incoming messages are ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("WebSocket", "Upgrade failed: %v", err)
		return
	}
	h.add(conn)
	defer func() {
		h.remove(conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
