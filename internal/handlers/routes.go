package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// Routes builds the API router. rateLimit caps model-calling requests per client IP per minute.
func (h *Handler) Routes(rateLimit int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	limited := httprate.LimitByIP(rateLimit, time.Minute)

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/papers", h.HandlePapers)
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.HandleListSessions)
			r.Post("/", h.HandleCreateSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", h.HandleGetSession)
				r.Delete("/", h.HandleDeleteSession)
				r.With(limited).Post("/sample", h.HandleSample)
				r.With(limited).Post("/generate", h.HandleGenerate)
				r.Post("/reset", h.HandleReset)
				r.Get("/events", h.HandleEvents)
				r.Get("/pages/{page}", h.HandlePage)
				r.Get("/pdf", h.HandlePDF)
			})
		})
	})

	return r
}
