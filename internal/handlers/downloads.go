package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lehigh-university-libraries/scrivener/internal/export"
)

// HandlePage serves one generated page as an image download
func (h *Handler) HandlePage(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	position, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil || position < 1 {
		h.writeError(w, "Invalid page number", http.StatusBadRequest)
		return
	}

	pages := session.Orchestrator.State().Pages
	if position > len(pages) {
		h.writeError(w, "Page not found", http.StatusNotFound)
		return
	}
	page := pages[position-1]

	w.Header().Set("Content-Type", page.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.PageFilename(page)))
	w.Header().Set("Content-Length", strconv.Itoa(len(page.Data)))
	if _, err := w.Write(page.Data); err != nil {
		slog.Error("Unable to write page", "session_id", session.ID, "page", position, "err", err)
	}
}

// HandlePDF serves every generated page so far as one PDF
func (h *Handler) HandlePDF(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WritePDF(&buf, session.Orchestrator.State().Pages); err != nil {
		if errors.Is(err, export.ErrNoPages) {
			h.writeError(w, "No pages generated yet", http.StatusNotFound)
			return
		}
		h.writeError(w, "Failed to build PDF: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="handwriting.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("Unable to write PDF", "session_id", session.ID, "err", err)
	}
}
