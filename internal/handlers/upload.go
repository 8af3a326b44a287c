package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/scrivener/internal/generation"
	"github.com/lehigh-university-libraries/scrivener/internal/models"
	"github.com/lehigh-university-libraries/scrivener/internal/samples"
)

// HandleSample accepts a handwriting sample and calibrates the session with it.
// The sample may be a multipart file upload or a JSON body with an image_url.
func (h *Handler) HandleSample(w http.ResponseWriter, r *http.Request) {
	session, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var sample models.Sample
	var err error
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		sample, err = h.readURLSample(r)
	} else {
		sample, err = h.readFileSample(w, r)
	}
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, samples.ErrTooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		h.writeError(w, err.Error(), code)
		return
	}

	slog.Info("Calibrating session", "session_id", session.ID, "filename", sample.Filename, "media_type", sample.MediaType, "bytes", len(sample.Data))
	state, err := session.Orchestrator.Calibrate(r.Context(), sample)
	view := newSessionView(session, state)

	switch {
	case err == nil:
		h.writeJSON(w, view)
	case errors.Is(err, generation.ErrRejected):
		h.writeJSONStatus(w, http.StatusUnprocessableEntity, view)
	case errors.Is(err, generation.ErrBusy), errors.Is(err, generation.ErrAlreadyCalibrated), errors.Is(err, generation.ErrStale):
		h.writeError(w, err.Error(), http.StatusConflict)
	default:
		h.writeJSONStatus(w, http.StatusBadGateway, view)
	}
}

func (h *Handler) readURLSample(r *http.Request) (models.Sample, error) {
	var request struct {
		ImageURL string `json:"image_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		return models.Sample{}, errors.New("Invalid JSON: " + err.Error())
	}
	if request.ImageURL == "" {
		return models.Sample{}, errors.New("image_url is required")
	}
	return h.fetcher.Fetch(r.Context(), request.ImageURL)
}

func (h *Handler) readFileSample(w http.ResponseWriter, r *http.Request) (models.Sample, error) {
	r.Body = http.MaxBytesReader(w, r.Body, samples.MaxBytes+1024*1024)

	file, header, err := r.FormFile("file")
	if err != nil {
		file, header, err = r.FormFile("files")
		if err != nil {
			return models.Sample{}, errors.New("Failed to read file: " + err.Error())
		}
	}
	defer file.Close()

	fileData, err := io.ReadAll(io.LimitReader(file, samples.MaxBytes))
	if err != nil {
		return models.Sample{}, errors.New("Failed to read file contents: " + err.Error())
	}

	return samples.Load(fileData, header.Filename)
}
