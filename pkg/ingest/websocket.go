package ingest

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"floorpulse/pkg/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// No Origin header = non-browser client (curl, dashboards, tests).
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
	ReadBufferSize:  config.WSReadBufferSize,
	WriteBufferSize: config.WSWriteBufferSize,
}

// Event types pushed to /v1/live subscribers.
const (
	EventPartitionUpdated = "partition_updated"
	EventCacheCleared     = "cache_cleared"
	EventCacheStats       = "cache_stats"
	EventSweepProgress    = "sweep_progress"
)

// Event is one cache-change notification.
type Event struct {
	Type        string      `json:"type"`
	Key         string      `json:"key,omitempty"`
	Warehouse   string      `json:"warehouse,omitempty"`
	Date        string      `json:"date,omitempty"`
	Shift       string      `json:"shift,omitempty"`
	RecordCount int         `json:"recordCount,omitempty"`
	At          time.Time   `json:"at"`
	Payload     interface{} `json:"payload,omitempty"`
}

// Hub manages WebSocket connections for live cache-update streaming.
type Hub struct {
	clients map[*websocket.Conn]bool

	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte

	mu sync.RWMutex
}

// NewHub creates a WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn, config.WSChannelBuffer),
		unregister: make(chan *websocket.Conn, config.WSChannelBuffer),
		broadcast:  make(chan []byte, config.WSBroadcastBuffer),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
			}
			h.mu.Unlock()
			return
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected (total: %d)", count)
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected (total: %d)", count)
		case message := <-h.broadcast:
			h.mu.RLock()
			// Collect failed connections to unregister after releasing the lock.
			var failed []*websocket.Conn
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					log.Printf("WebSocket write error: %v", err)
					failed = append(failed, conn)
				}
			}
			h.mu.RUnlock()

			for _, conn := range failed {
				h.unregister <- conn
			}
		}
	}
}

// Broadcast fans a message out to every connected client. When the buffer is
// full the message is dropped rather than blocking a cache write.
func (h *Hub) Broadcast(data interface{}) error {
	message, err := json.Marshal(data)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- message:
		return nil
	default:
		log.Printf("Broadcast channel full, dropping message")
		return nil
	}
}

// HasClients reports whether anyone is listening. The stats broadcaster
// skips its tick entirely when nobody is.
func (h *Hub) HasClients() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) > 0
}

// HandleWebSocket handles GET /v1/live upgrade requests.
func (h *Handler) HandleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		hub.register <- conn

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Ping sender keeps the connection alive through idle stretches.
		go func() {
			ticker := time.NewTicker(config.WSPingInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				}
			}
		}()

		defer func() {
			cancel()
			hub.unregister <- conn
		}()

		conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
			return nil
		})

		// Read loop exists to service control frames and notice closes.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("WebSocket error: %v", err)
				}
				break
			}
		}
	}
}
