package cmd

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/lehigh-university-libraries/scrivener/internal/chunker"
	"github.com/spf13/cobra"
)

func newChunkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk [file]",
		Short: "Show how text will be split into pages",
		Long: fmt.Sprintf(`Splits text from a file, or stdin when no file is given, into pages of at most %d characters
and prints each page with its length. No model is called.`, chunker.MaxPageChars),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			chunks := chunker.SplitIntoPages(text)
			out := cmd.OutOrStdout()
			for i, chunk := range chunks {
				fmt.Fprintf(out, "--- page %d of %d (%d chars) ---\n%s\n", i+1, len(chunks), utf8.RuneCountInString(chunk), chunk)
			}
			if len(chunks) == 0 {
				fmt.Fprintln(out, "no pages: input has no words")
			}
			return nil
		},
	}

	return cmd
}

func readText(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read text file: %w", err)
	}
	return string(data), nil
}
