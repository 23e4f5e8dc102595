package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/saucerview/saucerview/internal/logger"
	"github.com/saucerview/saucerview/internal/offline"
)

var wsLogger = logger.GetForComponent("ws_hub")

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wireEvent is the JSON frame pushed to connected dashboard tabs.
type wireEvent struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

// EventHub fans offline worker events out to websocket clients, so every
// open dashboard tab learns about a successful background sync.
type EventHub struct {
	worker *offline.Worker

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewEventHub(worker *offline.Worker) *EventHub {
	return &EventHub{
		worker:  worker,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Run consumes worker events until the subscription is closed.
func (h *EventHub) Run() {
	events, cancel := h.worker.Subscribe()
	defer cancel()

	for ev := range events {
		switch e := ev.(type) {
		case offline.SyncSuccess:
			h.broadcast(wireEvent{Type: "SYNC_SUCCESS", URL: e.URL})
		}
	}
}

func (h *EventHub) broadcast(ev wireEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			wsLogger.Debug().Err(err).Msg("Dropping websocket client")
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *EventHub) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		wsLogger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	wsLogger.Info().Str("remote_addr", r.RemoteAddr).Msg("Websocket client connected")

	// Read loop only exists to detect the client going away.
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
