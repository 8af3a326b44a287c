package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/scrivener/internal/chunker"
	"github.com/lehigh-university-libraries/scrivener/internal/export"
	"github.com/lehigh-university-libraries/scrivener/internal/generation"
	"github.com/lehigh-university-libraries/scrivener/internal/manifest"
	"github.com/lehigh-university-libraries/scrivener/internal/models"
	"github.com/lehigh-university-libraries/scrivener/internal/samples"
	"github.com/lehigh-university-libraries/scrivener/internal/scribing"
	"github.com/lehigh-university-libraries/scrivener/internal/style"
	"github.com/spf13/cobra"
)

func newRenderCmd() *cobra.Command {
	var (
		samplePath   string
		profilePath  string
		text         string
		textFile     string
		paperName    string
		outDir       string
		pdfPath      string
		manifestPath string
		pf           providerFlags
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Write text in the hand of a sample",
		Long: `Calibrates on a handwriting sample, splits the text into pages and renders each page
as an image. Pages are written to --out as soon as they are ready.

Pass --profile with a file from "scrivener analyze" to skip the analysis call.
Text comes from --text, --text-file, or stdin.`,
		Example: `  scrivener render --sample letter.jpg --text-file note.txt --out pages/
  scrivener render --sample letter.jpg --profile profile.yaml --text "Dear Ada," --paper aged --pdf note.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if samplePath == "" {
				return errors.New("--sample is required")
			}
			paper, err := models.ParsePaperType(paperName)
			if err != nil {
				return err
			}

			if text == "" {
				var textArgs []string
				if textFile != "" {
					textArgs = []string{textFile}
				}
				text, err = readText(cmd.InOrStdin(), textArgs)
				if err != nil {
					return err
				}
			}
			chunks := chunker.SplitIntoPages(text)
			if len(chunks) == 0 {
				return generation.ErrEmptyText
			}

			service, err := scribing.NewService(scribing.Options{
				AnalysisProvider: pf.analysisProvider,
				AnalysisModel:    pf.analysisModel,
				RenderProvider:   pf.renderProvider,
				RenderModel:      pf.renderModel,
			})
			if err != nil {
				return err
			}

			sample, err := samples.ReadFile(samplePath)
			if err != nil {
				return err
			}

			orchestrator := service.NewOrchestrator()
			if profilePath != "" {
				profile, err := style.ReadProfile(profilePath)
				if err != nil {
					return err
				}
				if _, err := orchestrator.Restore(sample, profile); err != nil {
					return err
				}
			} else {
				state, err := orchestrator.Calibrate(cmd.Context(), sample)
				if errors.Is(err, generation.ErrRejected) {
					return errors.New(state.Message)
				}
				if err != nil {
					return fmt.Errorf("failed to analyze sample: %w", err)
				}
			}

			runID := uuid.NewString()
			var (
				records  []manifest.Record
				writeErr error
			)
			stop := orchestrator.Observe(func(e generation.Event) {
				switch e.Type {
				case generation.EventState:
					if e.Status == models.StatusGenerating && e.Progress.Current > 0 {
						slog.Info("Rendering page", "page", e.Progress.Current, "total", e.Progress.Total)
					}
				case generation.EventPage:
					path, err := export.WritePage(outDir, *e.Page)
					if err != nil {
						writeErr = errors.Join(writeErr, err)
						return
					}
					fmt.Fprintln(cmd.OutOrStdout(), path)
					chars := utf8.RuneCountInString(chunks[e.Page.Index-1])
					records = append(records, manifest.NewRecord(runID, *e.Page, len(chunks), paper, chars, service.Renderer.Model(), path))
				}
			})
			defer stop()

			genErr := orchestrator.Generate(cmd.Context(), text, paper)
			pages := orchestrator.State().Pages
			if genErr != nil {
				slog.Error("Generation stopped early", "pages", len(pages), "total", len(chunks), "err", genErr)
			}

			if pdfPath != "" && len(pages) > 0 {
				if err := export.WritePDFFile(pdfPath, pages); err != nil {
					writeErr = errors.Join(writeErr, err)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), pdfPath)
				}
			}
			if manifestPath != "" && len(records) > 0 {
				if err := manifest.Write(manifestPath, records); err != nil {
					writeErr = errors.Join(writeErr, err)
				}
			}

			if skipped := len(chunks) - len(pages); genErr == nil && skipped > 0 {
				slog.Warn("Some pages came back without an image", "skipped", skipped)
			}
			if genErr != nil {
				return errors.Join(fmt.Errorf("generation stopped after %d of %d pages: %w", len(pages), len(chunks), genErr), writeErr)
			}
			return writeErr
		},
	}

	cmd.Flags().StringVarP(&samplePath, "sample", "s", "", "Handwriting sample image or PDF (required)")
	cmd.Flags().StringVar(&profilePath, "profile", "", "Style profile YAML from the analyze command")
	cmd.Flags().StringVarP(&text, "text", "t", "", "Text to write")
	cmd.Flags().StringVarP(&textFile, "text-file", "f", "", "Read the text to write from this file")
	cmd.Flags().StringVar(&paperName, "paper", string(models.PaperLined), "Paper type: "+strings.Join(paperNames(), ", "))
	cmd.Flags().StringVarP(&outDir, "out", "o", "pages", "Directory for page images")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "Also write every page into this PDF")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Write a parquet manifest of the run to this path")
	pf.register(cmd, true)

	return cmd
}

func paperNames() []string {
	names := make([]string, 0, len(models.PaperTypes()))
	for _, p := range models.PaperTypes() {
		names = append(names, string(p))
	}
	return names
}
