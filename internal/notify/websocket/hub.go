// Package websocket keeps the live websocket sessions of each account.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jon4hz/showtrack/internal/notify"
)

var _ notify.Notifier = (*Hub)(nil)

const writeWait = 10 * time.Second

// Message is the envelope of every event written to a session.
type Message struct {
	Event     string `json:"event"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type session struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes
}

func (s *session) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub maps accounts to their connected sessions.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	sessions map[uint]map[string]*session // accountID -> sessionID -> session
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[uint]map[string]*session),
	}
}

// ServeWS upgrades the request and registers the connection for the account. It blocks until
// the client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, accountID uint) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close() //nolint:errcheck

	s := &session{id: uuid.NewString(), conn: conn}
	h.register(accountID, s)
	defer h.unregister(accountID, s.id)

	log.Debug("websocket session connected", "accountID", accountID, "session", s.id)

	// clients only send keep-alives
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Debug("websocket session closed", "accountID", accountID, "session", s.id, "error", err)
			return nil
		}
	}
}

func (h *Hub) register(accountID uint, s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[accountID] == nil {
		h.sessions[accountID] = make(map[string]*session)
	}
	h.sessions[accountID][s.id] = s
}

func (h *Hub) unregister(accountID uint, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sessions, ok := h.sessions[accountID]; ok {
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(h.sessions, accountID)
		}
	}
}

// Connected returns the number of live sessions of an account.
func (h *Hub) Connected(accountID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[accountID])
}

// SendToAccount writes the event to every session of the account. Sessions that fail to
// receive it are dropped.
func (h *Hub) SendToAccount(_ context.Context, accountID uint, event string, payload any) bool {
	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions[accountID]))
	for _, s := range h.sessions[accountID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return false
	}

	data, err := json.Marshal(Message{Event: event, Data: payload, Timestamp: time.Now().Unix()})
	if err != nil {
		log.Error("failed to marshal websocket message", "event", event, "error", err)
		return false
	}

	delivered := false
	for _, s := range targets {
		if err := s.write(data); err != nil {
			log.Warn("failed to write to websocket session", "accountID", accountID, "session", s.id, "error", err)
			h.unregister(accountID, s.id)
			_ = s.conn.Close()
			continue
		}
		delivered = true
	}
	return delivered
}

// Close disconnects all sessions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sessions := range h.sessions {
		for _, s := range sessions {
			_ = s.conn.Close()
		}
	}
	h.sessions = make(map[uint]map[string]*session)
}
