package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lehigh-university-libraries/scrivener/internal/handlers"
	"github.com/lehigh-university-libraries/scrivener/internal/providers"
	"github.com/lehigh-university-libraries/scrivener/internal/scribing"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port       string
		rateLimit  int
		maxRenders int
		pf         providerFlags
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the handwriting API server",
		Long: `Starts the Scrivener HTTP API on the specified port.

Clients create a session, upload a handwriting sample to calibrate it, then submit
text to generate pages. Progress and finished pages stream over a websocket.`,
		Example: `  # Start server on default port 8888
  scrivener serve

  # Render with OpenAI and analyze with a local Ollama model
  scrivener serve --analysis-provider ollama --render-provider openai`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxRenders < 0 {
				maxRenders = 0
			}
			if !cmd.Flags().Changed("max-renders") {
				if n, err := strconv.Atoi(providers.Env("", "SCRIVENER_MAX_RENDERS")); err == nil {
					maxRenders = n
				}
			}

			service, err := scribing.NewService(scribing.Options{
				AnalysisProvider:     pf.analysisProvider,
				AnalysisModel:        pf.analysisModel,
				RenderProvider:       pf.renderProvider,
				RenderModel:          pf.renderModel,
				MaxConcurrentRenders: maxRenders,
			})
			if err != nil {
				return err
			}

			handler := handlers.New(service)

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(rateLimit),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Scrivener API available", "addr", addr, "url", "http://localhost"+addr,
					"analysis_model", service.Analyzer.Model(), "render_model", service.Renderer.Model())
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 30, "Sample and generate requests allowed per client IP per minute")
	cmd.Flags().IntVar(&maxRenders, "max-renders", 4, "Image requests allowed in flight across all sessions (0 for no limit, env SCRIVENER_MAX_RENDERS)")
	pf.register(cmd, true)

	return cmd
}
