package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event types broadcast to connected UIs.
const (
	EventSaved     = "saved"
	EventValidated = "validated"
)

// Event is one message on the event stream.
type Event struct {
	Type    string `json:"type"`
	Error   string `json:"error,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// EventHub fans events out to every connected WebSocket client. Callers
// observe save completion through it, per the completion-event contract.
type EventHub struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]chan Event
}

// NewEventHub builds an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{
		upgrader: websocket.Upgrader{
			// The UI collaborator runs on localhost; same-origin policy is
			// not meaningful here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]chan Event),
	}
}

// HandleWS upgrades the request and streams events until the client goes
// away.
func (h *EventHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	ch := make(chan Event, 16)
	h.mu.Lock()
	h.conns[conn] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Reader goroutine: we never expect client messages, but reading is
	// required to notice disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev := <-ch:
			if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

// Broadcast sends ev to every connected client, dropping it for clients
// whose buffers are full rather than blocking the caller.
func (h *EventHub) Broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.conns {
		select {
		case ch <- ev:
		default:
			slog.Debug("event dropped for slow client", "remote", conn.RemoteAddr())
		}
	}
}

// NotifySaved is the OnSaved observer shape: it broadcasts the outcome of a
// completed save.
func (h *EventHub) NotifySaved(err error) {
	ev := Event{Type: EventSaved}
	if err != nil {
		ev.Error = err.Error()
	}
	h.Broadcast(ev)
}
