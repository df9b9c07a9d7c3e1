package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clinilog/ecmotrend/pkg/config"
	"github.com/clinilog/ecmotrend/pkg/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Allow same-origin requests, or requests with no Origin header
		// (direct connections from non-browser clients).
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
	ReadBufferSize:  config.WSReadBufferSize,
	WriteBufferSize: config.WSWriteBufferSize,
}

// TableUpdate is the live-feed message sent after each table mutation. The
// display layer re-fetches the table when the fingerprint changes.
type TableUpdate struct {
	Type        string    `json:"type"`
	Fingerprint uint64    `json:"fingerprint"`
	Count       int       `json:"count"`
	ChangedAt   time.Time `json:"changed_at"`
}

// Hub manages WebSocket connections for the live table-change feed.
type Hub struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte

	mu sync.RWMutex

	// last fingerprint broadcast; suppresses no-op notifications
	lastMu   sync.Mutex
	lastSent uint64
	sentAny  bool
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn, config.WSChannelBuffer),
		unregister: make(chan *websocket.Conn, config.WSChannelBuffer),
		broadcast:  make(chan []byte, config.WSBroadcastBuffer),
	}
}

// Run starts the hub's main loop. Returns when ctx is cancelled, closing
// all client connections.
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
			log.Printf("Live feed client connected (total: %d)", count)
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("Live feed client disconnected (total: %d)", count)
		case message := <-h.broadcast:
			h.mu.RLock()
			var failed []*websocket.Conn
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					log.Printf("Live feed write error: %v", err)
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

// HasClients reports whether any client is connected.
func (h *Hub) HasClients() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) > 0
}

// NotifyChange broadcasts the store's current fingerprint and size. Calls
// where the fingerprint has not changed since the last broadcast are
// dropped, so rejected edits never wake the display layer.
func (h *Hub) NotifyChange(s *store.Store) {
	fp := s.Fingerprint()

	h.lastMu.Lock()
	if h.sentAny && fp == h.lastSent {
		h.lastMu.Unlock()
		return
	}
	h.lastSent = fp
	h.sentAny = true
	h.lastMu.Unlock()

	if !h.HasClients() {
		return
	}

	message, err := json.Marshal(TableUpdate{
		Type:        "table_update",
		Fingerprint: fp,
		Count:       s.Len(),
		ChangedAt:   time.Now(),
	})
	if err != nil {
		log.Printf("Failed to encode live update: %v", err)
		return
	}

	select {
	case h.broadcast <- message:
	default:
		log.Println("Live feed broadcast buffer full, dropping update")
	}
}

// HandleWS upgrades GET /v1/live to a WebSocket connection.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	h.register <- conn

	// Reader loop: the feed is one-way, but reading drains control frames
	// and detects closes.
	go func() {
		defer func() { h.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
