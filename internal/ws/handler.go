package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/urlsentry/urlsentry-go/internal/classify"
	"github.com/urlsentry/urlsentry-go/internal/db"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Manager tracks active WebSocket connections and broadcasts every verdict
// the service produces. The store is optional; without one new subscribers
// simply start from an empty feed.
type Manager struct {
	mu          sync.RWMutex
	connections []*websocket.Conn
	logger      *slog.Logger
	store       *db.Store
}

// NewManager creates a new WebSocket manager. store may be nil.
func NewManager(store *db.Store, logger *slog.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// HandleWS upgrades an HTTP connection to WebSocket and registers it.
func (m *Manager) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	// Replay recent verdicts so the feed is not empty on connect. The
	// connection is registered only afterwards — broadcasts must not write
	// concurrently with the replay.
	m.hydrate(r, conn)

	m.mu.Lock()
	m.connections = append(m.connections, conn)
	m.mu.Unlock()

	// Keep connection alive, read messages (we ignore them)
	defer func() {
		m.mu.Lock()
		for i, c := range m.connections {
			if c == conn {
				m.connections = append(m.connections[:i], m.connections[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (m *Manager) hydrate(r *http.Request, conn *websocket.Conn) {
	if m.store == nil {
		return
	}

	records, err := m.store.GetRecentVerdicts(r.Context(), 20)
	if err != nil {
		m.logger.Warn("websocket hydrate failed", "err", err)
		return
	}
	// Oldest first so the client sees them in arrival order.
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		m.sendJSON(conn, map[string]any{
			"type":       "verdict",
			"url":        rec.URL,
			"prediction": rec.Prediction,
			"confidence": rec.Confidence,
			"method":     rec.Method,
			"created_at": rec.CreatedAt.Format(time.RFC3339),
		})
	}
}

// BroadcastVerdict pushes one verdict to every connected client.
func (m *Manager) BroadcastVerdict(v *classify.Verdict) {
	m.Broadcast(map[string]any{
		"type":       "verdict",
		"url":        v.URL,
		"prediction": v.Prediction,
		"confidence": v.Confidence,
		"method":     string(v.Method),
		"message":    v.Message,
	})
}

// Broadcast sends a message to all connected WebSocket clients.
func (m *Manager) Broadcast(data map[string]any) {
	m.mu.RLock()
	conns := make([]*websocket.Conn, len(m.connections))
	copy(conns, m.connections)
	m.mu.RUnlock()

	var dead []*websocket.Conn
	for _, conn := range conns {
		if err := m.sendJSON(conn, data); err != nil {
			dead = append(dead, conn)
		}
	}

	if len(dead) > 0 {
		m.mu.Lock()
		for _, d := range dead {
			for i, c := range m.connections {
				if c == d {
					m.connections = append(m.connections[:i], m.connections[i+1:]...)
					d.Close()
					break
				}
			}
		}
		m.mu.Unlock()
	}
}

// Count returns the number of active connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

func (m *Manager) sendJSON(conn *websocket.Conn, data map[string]any) error {
	msg, err := json.Marshal(data)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, msg)
}
