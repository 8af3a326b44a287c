package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/scrivener/internal/models"
)

func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessionStore.GetAll()
	sessionList := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		sessionList = append(sessionList, newSessionView(session, session.Orchestrator.State()))
	}
	h.writeJSON(w, sessionList)
}

func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	session := h.createSession(uuid.NewString())
	slog.Info("Session created", "session_id", session.ID)
	h.writeJSONStatus(w, http.StatusCreated, newSessionView(session, session.Orchestrator.State()))
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, newSessionView(session, session.Orchestrator.State()))
}

func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	session.Orchestrator.Reset()
	h.sessionStore.Delete(session.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	state := session.Orchestrator.Reset()
	slog.Info("Session reset", "session_id", session.ID)
	h.writeJSON(w, newSessionView(session, state))
}

func (h *Handler) HandlePapers(w http.ResponseWriter, r *http.Request) {
	type paper struct {
		Name        models.PaperType `json:"name"`
		Description string           `json:"description"`
	}
	papers := make([]paper, 0, len(models.PaperTypes()))
	for _, p := range models.PaperTypes() {
		papers = append(papers, paper{Name: p, Description: p.Descriptor()})
	}
	h.writeJSON(w, papers)
}
