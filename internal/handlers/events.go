package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lehigh-university-libraries/scrivener/internal/generation"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	eventQueue = 64
)

// HandleEvents streams session events over a websocket so clients can show each page
// as soon as it is ready. The current state is sent first.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "session_id", session.ID, "err", err)
		return
	}
	defer conn.Close()

	events := make(chan generation.Event, eventQueue)
	stop := session.Orchestrator.Observe(func(e generation.Event) {
		select {
		case events <- e:
		default:
			slog.Warn("Dropping event for slow websocket client", "session_id", session.ID, "type", e.Type)
		}
	})
	defer stop()

	if err := writeEvent(conn, generation.SnapshotEvent(session.Orchestrator.State())); err != nil {
		return
	}

	// The reader only exists to notice the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case e := <-events:
			if err := writeEvent(conn, e); err != nil {
				slog.Debug("WebSocket write failed", "session_id", session.ID, "err", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, e generation.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(e)
}
