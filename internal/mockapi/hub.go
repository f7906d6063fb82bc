package mockapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dharsanguruparan/compressdash/internal/events"
	"github.com/dharsanguruparan/compressdash/internal/model"
)

const writeWait = 5 * time.Second

// Hub fans job updates out to every connected WebSocket client.
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHub creates a Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeHTTP upgrades the request and holds the connection until the client
// goes away. Incoming messages are ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("websocket client connected", "clients", total)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, conn)
	total = len(h.clients)
	h.mu.Unlock()
	_ = conn.Close()
	h.logger.Info("websocket client disconnected", "clients", total)
}

// Broadcast sends a job_update for job to every client. Clients that fail
// the write are dropped.
func (h *Hub) Broadcast(job model.Job) {
	msg := events.Message{
		Type:      events.TypeJobUpdate,
		JobID:     job.ID,
		Status:    job.Status,
		Timestamp: time.Now().UTC(),
	}
	if job.UpdatedAt != nil {
		msg.Timestamp = *job.UpdatedAt
	}
	if job.Status == model.StatusFailed && job.ErrorMessage != nil {
		msg.Error = *job.ErrorMessage
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal job update failed", "error", err)
		return
	}

	// Writes happen under the lock: a websocket.Conn allows one writer at a time.
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Warn("dropping websocket client", "error", err)
			delete(h.clients, conn)
			_ = conn.Close()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		delete(h.clients, conn)
	}
}
