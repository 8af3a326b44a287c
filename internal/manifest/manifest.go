// Package manifest records what a generation run produced as a parquet file.
package manifest

import (
	"fmt"
	"time"

	"github.com/lehigh-university-libraries/scrivener/internal/models"
	"github.com/parquet-go/parquet-go"
)

// Record describes one generated page
type Record struct {
	RunID       string `parquet:"run_id"`
	Page        int64  `parquet:"page"`
	Total       int64  `parquet:"total"`
	Paper       string `parquet:"paper"`
	Chars       int64  `parquet:"chars"`
	MIMEType    string `parquet:"mime_type"`
	Bytes       int64  `parquet:"bytes"`
	Filename    string `parquet:"filename"`
	Model       string `parquet:"model"`
	GeneratedAt int64  `parquet:"generated_at_ms"`
}

// NewRecord builds a record for a page rendered from a chunk of chars characters
func NewRecord(runID string, page models.GeneratedPage, total int, paper models.PaperType, chars int, model, filename string) Record {
	generated := page.CreatedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	return Record{
		RunID:       runID,
		Page:        int64(page.Index),
		Total:       int64(total),
		Paper:       string(paper),
		Chars:       int64(chars),
		MIMEType:    page.MIMEType,
		Bytes:       int64(len(page.Data)),
		Filename:    filename,
		Model:       model,
		GeneratedAt: generated.UnixMilli(),
	}
}

// Write saves records to a parquet file
func Write(path string, records []Record) error {
	if err := parquet.WriteFile(path, records); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Read loads records from a parquet file
func Read(path string) ([]Record, error) {
	records, err := parquet.ReadFile[Record](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return records, nil
}
