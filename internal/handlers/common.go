package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/lehigh-university-libraries/scrivener/internal/models"
	"github.com/lehigh-university-libraries/scrivener/internal/samples"
	"github.com/lehigh-university-libraries/scrivener/internal/scribing"
	"github.com/lehigh-university-libraries/scrivener/internal/storage"
)

type Handler struct {
	sessionStore *storage.SessionStore
	service      *scribing.Service
	fetcher      *samples.Fetcher
	upgrader     websocket.Upgrader
}

func New(service *scribing.Service) *Handler {
	return &Handler{
		sessionStore: storage.New(),
		service:      service,
		fetcher:      samples.NewFetcher(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// PageView describes a generated page without its bytes
type PageView struct {
	Position  int       `json:"position"`
	Index     int       `json:"index"`
	MIMEType  string    `json:"mime_type"`
	Bytes     int       `json:"bytes"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionView is the JSON form of a session
type SessionView struct {
	ID         string               `json:"id"`
	CreatedAt  time.Time            `json:"created_at"`
	Status     models.Status        `json:"status"`
	Calibrated bool                 `json:"calibrated"`
	Sample     *models.Sample       `json:"sample,omitempty"`
	Profile    *models.StyleProfile `json:"profile,omitempty"`
	Progress   models.Progress      `json:"progress"`
	Message    string               `json:"message,omitempty"`
	Pages      []PageView           `json:"pages"`
	PDFURL     string               `json:"pdf_url,omitempty"`
}

func newSessionView(session *storage.Session, state models.SessionState) SessionView {
	view := SessionView{
		ID:         session.ID,
		CreatedAt:  session.CreatedAt,
		Status:     state.Status,
		Calibrated: state.Calibrated,
		Sample:     state.Sample,
		Profile:    state.Profile,
		Progress:   state.Progress,
		Message:    state.Message,
		Pages:      make([]PageView, 0, len(state.Pages)),
	}
	for i, p := range state.Pages {
		view.Pages = append(view.Pages, PageView{
			Position:  i + 1,
			Index:     p.Index,
			MIMEType:  p.MIMEType,
			Bytes:     len(p.Data),
			URL:       fmt.Sprintf("/api/sessions/%s/pages/%d", session.ID, i+1),
			CreatedAt: p.CreatedAt,
		})
	}
	if len(state.Pages) > 0 {
		view.PDFURL = "/api/sessions/" + session.ID + "/pdf"
	}
	return view
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, r *http.Request) (*storage.Session, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	session, exists := h.sessionStore.Get(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

func (h *Handler) createSession(id string) *storage.Session {
	session := &storage.Session{
		ID:           id,
		CreatedAt:    time.Now(),
		Orchestrator: h.service.NewOrchestrator(),
	}
	h.sessionStore.Set(id, session)
	return session
}
