package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lehigh-university-libraries/scrivener/internal/generation"
	"github.com/lehigh-university-libraries/scrivener/internal/models"
)

// MaxGenerateBytes caps the JSON body of a generate request
const MaxGenerateBytes = 1 << 20

// HandleGenerate starts a generation run and returns immediately.
// Progress is available from the session endpoint or the events websocket.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxGenerateBytes)

	var request struct {
		Text  string `json:"text"`
		Paper string `json:"paper"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, fmt.Sprintf("Request too large (max %d bytes)", MaxGenerateBytes), http.StatusRequestEntityTooLarge)
			return
		}
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	paper := models.PaperLined
	if request.Paper != "" {
		p, err := models.ParsePaperType(request.Paper)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		paper = p
	}

	err := session.Orchestrator.Start(r.Context(), request.Text, paper)
	switch {
	case err == nil:
	case errors.Is(err, generation.ErrEmptyText):
		h.writeError(w, "text is required", http.StatusBadRequest)
		return
	case errors.Is(err, generation.ErrNotCalibrated):
		h.writeError(w, "Upload a recognizable handwriting sample first", http.StatusPreconditionFailed)
		return
	case errors.Is(err, generation.ErrBusy):
		h.writeError(w, err.Error(), http.StatusConflict)
		return
	default:
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	state := session.Orchestrator.State()
	slog.Info("Generation started", "session_id", session.ID, "pages", state.Progress.Total, "paper", paper)
	h.writeJSONStatus(w, http.StatusAccepted, newSessionView(session, state))
}
