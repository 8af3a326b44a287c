package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lehigh-university-libraries/scrivener/internal/models"
)

// PageFilename is the download name of a single page
func PageFilename(page models.GeneratedPage) string {
	return fmt.Sprintf("page-%03d%s", page.Index, page.Extension())
}

// WritePage saves one page into dir and returns its path
func WritePage(dir string, page models.GeneratedPage) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, PageFilename(page))
	if err := os.WriteFile(path, page.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write page: %w", err)
	}
	return path, nil
}

// WritePDFFile writes the PDF for pages to path
func WritePDFFile(path string, pages []models.GeneratedPage) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create PDF file: %w", err)
	}
	if err := WritePDF(f, pages); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
