// Package scribing wires the configured model providers into analyzers and renderers.
package scribing

import (
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/scrivener/internal/claude"
	"github.com/lehigh-university-libraries/scrivener/internal/gemini"
	"github.com/lehigh-university-libraries/scrivener/internal/generation"
	"github.com/lehigh-university-libraries/scrivener/internal/ollama"
	"github.com/lehigh-university-libraries/scrivener/internal/openai"
	"github.com/lehigh-university-libraries/scrivener/internal/providers"
	"github.com/lehigh-university-libraries/scrivener/internal/render"
	"github.com/lehigh-university-libraries/scrivener/internal/style"
)

// Options selects providers and models. Empty fields fall back to the environment.
type Options struct {
	AnalysisProvider string
	AnalysisModel    string
	RenderProvider   string
	RenderModel      string
	// MaxConcurrentRenders caps image requests in flight across sessions; 0 means no cap
	MaxConcurrentRenders int
}

type Service struct {
	Analyzer *style.Analyzer
	Renderer *render.Renderer
}

// NewService resolves providers and models and builds the clients
func NewService(opts Options) (*Service, error) {
	analysisProvider := opts.AnalysisProvider
	if analysisProvider == "" {
		analysisProvider = providers.Env("gemini", "SCRIVENER_ANALYSIS_PROVIDER")
	}
	renderProvider := opts.RenderProvider
	if renderProvider == "" {
		renderProvider = providers.Env("gemini", "SCRIVENER_RENDER_PROVIDER")
	}

	analyzer, err := newAnalyzer(analysisProvider)
	if err != nil {
		return nil, err
	}
	renderer, err := newRenderer(renderProvider)
	if err != nil {
		return nil, err
	}

	analysisModel := opts.AnalysisModel
	if analysisModel == "" {
		analysisModel = DefaultAnalysisModel(analysisProvider)
	}
	renderModel := opts.RenderModel
	if renderModel == "" {
		renderModel = DefaultRenderModel(renderProvider)
	}

	slog.Debug("Configured providers",
		"analysis_provider", analysisProvider, "analysis_model", analysisModel,
		"render_provider", renderProvider, "render_model", renderModel)

	return &Service{
		Analyzer: style.NewAnalyzer(analyzer, analysisModel),
		Renderer: render.NewRenderer(renderer, renderModel).LimitConcurrency(opts.MaxConcurrentRenders),
	}, nil
}

// NewOrchestrator returns a fresh session orchestrator using this service's clients
func (s *Service) NewOrchestrator() *generation.Orchestrator {
	return generation.New(s.Analyzer, s.Renderer)
}

func newAnalyzer(provider string) (providers.Analyzer, error) {
	switch provider {
	case "gemini":
		return gemini.New(), nil
	case "openai":
		return openai.New(), nil
	case "ollama":
		return ollama.New(), nil
	case "claude", "anthropic":
		return claude.New(), nil
	default:
		return nil, fmt.Errorf("unsupported analysis provider: %s", provider)
	}
}

func newRenderer(provider string) (providers.Renderer, error) {
	switch provider {
	case "gemini":
		return gemini.New(), nil
	case "openai":
		return openai.New(), nil
	default:
		return nil, fmt.Errorf("unsupported render provider: %s (image output needs gemini or openai)", provider)
	}
}

// DefaultAnalysisModel returns the analysis model for a provider
func DefaultAnalysisModel(provider string) string {
	switch provider {
	case "gemini":
		return providers.Env("gemini-2.5-flash", "GEMINI_MODEL")
	case "openai":
		return providers.Env("gpt-4o", "OPENAI_MODEL")
	case "ollama":
		return providers.Env("mistral-small3.2:24b", "OLLAMA_MODEL")
	case "claude", "anthropic":
		return providers.Env("claude-3-5-sonnet-latest", "ANTHROPIC_MODEL")
	default:
		return ""
	}
}

// DefaultRenderModel returns the image model for a provider
func DefaultRenderModel(provider string) string {
	switch provider {
	case "gemini":
		return providers.Env("gemini-2.5-flash-image", "GEMINI_IMAGE_MODEL")
	case "openai":
		return providers.Env("gpt-image-1", "OPENAI_IMAGE_MODEL")
	default:
		return ""
	}
}
