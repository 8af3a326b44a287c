package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "scrivener",
		Short: "Handwriting style cloner powered by vision and image models",
		Long: `Scrivener learns the look of a handwriting sample and writes new text in that hand.

Upload a photo or scan of handwriting, then supply any amount of text. The text is split
into pages and each page is rendered as a photograph of handwritten paper.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			if verbose {
				slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newChunkCmd())
	cmd.AddCommand(newRenderCmd())

	return cmd
}

// providerFlags are shared by every command that talks to a model
type providerFlags struct {
	analysisProvider string
	analysisModel    string
	renderProvider   string
	renderModel      string
}

func (f *providerFlags) register(cmd *cobra.Command, render bool) {
	cmd.Flags().StringVar(&f.analysisProvider, "analysis-provider", "", "Provider for style analysis: gemini, openai, ollama, claude (default from SCRIVENER_ANALYSIS_PROVIDER or gemini)")
	cmd.Flags().StringVar(&f.analysisModel, "analysis-model", "", "Model for style analysis (default depends on provider)")
	if render {
		cmd.Flags().StringVar(&f.renderProvider, "render-provider", "", "Provider for page images: gemini, openai (default from SCRIVENER_RENDER_PROVIDER or gemini)")
		cmd.Flags().StringVar(&f.renderModel, "render-model", "", "Model for page images (default depends on provider)")
	}
}
