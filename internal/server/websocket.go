package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/logtriage/logtriage-ai/internal/diagnose"
)

// ProgressEvent is one diagnosis state transition pushed to subscribers.
type ProgressEvent struct {
	AlertID   string    `json:"alertId"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// defaultOrigins are the local development frontends allowed when no
// explicit origin list is configured.
var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// newUpgrader builds a websocket upgrader whose origin check honors the
// configured allow list. An empty list falls back to the development
// origins; "*" disables checking. Requests without an Origin header
// (non-browser clients) are always allowed.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := allowedOrigins
	if len(allowed) == 0 {
		allowed = defaultOrigins
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, a := range allowed {
				if a == "*" || strings.EqualFold(a, origin) {
					return true
				}
			}
			return false
		},
	}
}

// Hub fans progress events out to every connected WebSocket client. A
// slow client loses events rather than stalling the pipeline.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan ProgressEvent
	closed  bool
	logger  *zap.Logger
}

// NewHub builds an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]chan ProgressEvent),
		logger:  logger.Named("ws"),
	}
}

// Broadcast queues the event for every client. Full client buffers drop
// the event for that client.
func (h *Hub) Broadcast(event ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

// NotifyTransition adapts Broadcast to the orchestrator's observer hook.
func (h *Hub) NotifyTransition(alertID string, state diagnose.State) {
	h.Broadcast(ProgressEvent{
		AlertID:   alertID,
		State:     string(state),
		Timestamp: time.Now().UTC(),
	})
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn, ch := range h.clients {
		close(ch)
		_ = conn.Close()
	}
	h.clients = make(map[*websocket.Conn]chan ProgressEvent)
}

func (h *Hub) add(conn *websocket.Conn) (chan ProgressEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	ch := make(chan ProgressEvent, 64)
	h.clients[conn] = ch
	return ch, true
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
}

// handleProgressWS upgrades the connection and streams progress events
// until the client goes away.
func (s *Server) handleProgressWS(w http.ResponseWriter, r *http.Request) {
	upgrader := newUpgrader(s.config.AllowedOrigins)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ch, ok := s.hub.add(conn)
	if !ok {
		_ = conn.Close()
		return
	}
	s.logger.Info("progress subscriber connected", zap.String("remote", conn.RemoteAddr().String()))

	// Reader goroutine detects disconnects; subscribers never send data.
	go func() {
		defer s.hub.remove(conn)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for event := range ch {
		if err := conn.WriteJSON(event); err != nil {
			s.hub.remove(conn)
			_ = conn.Close()
			return
		}
	}
}
