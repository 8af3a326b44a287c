package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lehigh-university-libraries/scrivener/internal/samples"
	"github.com/lehigh-university-libraries/scrivener/internal/scribing"
	"github.com/lehigh-university-libraries/scrivener/internal/style"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		output string
		pf     providerFlags
	)

	cmd := &cobra.Command{
		Use:   "analyze <sample>",
		Short: "Describe the handwriting style in a sample",
		Long: `Sends an image or PDF of handwriting to a vision model and prints the style profile as YAML.

The profile can be saved with --output and passed to "scrivener render --profile" to skip analysis.`,
		Example: `  scrivener analyze letter.jpg
  scrivener analyze letter.jpg --output profile.yaml --analysis-provider openai`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := scribing.NewService(scribing.Options{
				AnalysisProvider: pf.analysisProvider,
				AnalysisModel:    pf.analysisModel,
			})
			if err != nil {
				return err
			}

			sample, err := samples.ReadFile(args[0])
			if err != nil {
				return err
			}

			profile, err := service.Analyzer.Analyze(cmd.Context(), sample.Data, sample.MediaType)
			if err != nil {
				return err
			}
			if !profile.IsRecognizable {
				return errors.New(style.FailureMessage(profile))
			}

			data, err := style.MarshalProfile(profile, service.Analyzer.Model(), filepath.Base(args[0]))
			if err != nil {
				return err
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("failed to write profile file: %w", err)
			}
			slog.Info("Wrote style profile", "path", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the profile YAML to this file instead of stdout")
	pf.register(cmd, false)

	return cmd
}
