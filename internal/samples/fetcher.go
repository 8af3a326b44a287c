package samples

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/lehigh-university-libraries/scrivener/internal/models"
)

// Fetcher downloads samples that are referenced by URL
type Fetcher struct {
	HTTPClient *http.Client
}

// NewFetcher creates a new sample fetcher
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fetch downloads and validates the sample at imageURL
func (f *Fetcher) Fetch(ctx context.Context, imageURL string) (models.Sample, error) {
	u, err := url.Parse(imageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return models.Sample{}, fmt.Errorf("invalid sample URL: %s", imageURL)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return models.Sample{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return models.Sample{}, fmt.Errorf("failed to download sample: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Sample{}, fmt.Errorf("failed to download sample: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBytes))
	if err != nil {
		return models.Sample{}, fmt.Errorf("failed to read sample data: %w", err)
	}

	filename := path.Base(u.Path)
	if filename == "" || filename == "/" || filename == "." {
		filename = "sample.jpg"
	}

	slog.Info("Downloaded sample", "url", imageURL, "bytes", len(data))
	return Load(data, filename)
}
