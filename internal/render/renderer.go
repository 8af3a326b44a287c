// Package render asks an image model to write a chunk of text in a calibrated hand.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/scrivener/internal/models"
	"github.com/lehigh-university-libraries/scrivener/internal/providers"
	"golang.org/x/sync/semaphore"
)

// AspectRatio is the portrait ratio requested for every page
const AspectRatio = "3:4"

// Renderer produces one page image per call
type Renderer struct {
	provider providers.Renderer
	model    string
	sem      *semaphore.Weighted
}

// NewRenderer returns a renderer backed by the given provider and model
func NewRenderer(provider providers.Renderer, model string) *Renderer {
	return &Renderer{provider: provider, model: model}
}

// LimitConcurrency caps how many image requests run at once across every session
// sharing this renderer. n <= 0 removes the cap.
func (r *Renderer) LimitConcurrency(n int) *Renderer {
	if n <= 0 {
		r.sem = nil
		return r
	}
	r.sem = semaphore.NewWeighted(int64(n))
	return r
}

// Model returns the model name used for rendering
func (r *Renderer) Model() string {
	return r.model
}

// RenderPage renders text onto a photographed page in the reference hand.
// It returns nil without error when the model replied without an image.
func (r *Renderer) RenderPage(ctx context.Context, reference models.Sample, text string, paper models.PaperType, profile models.StyleProfile, pageIndex, totalPages int) (*models.GeneratedPage, error) {
	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("failed to wait for a render slot: %w", err)
		}
		defer r.sem.Release(1)
	}

	start := time.Now()
	blobs, err := r.provider.GenerateImage(ctx, providers.RenderRequest{
		Config: providers.Config{
			Model:       r.model,
			Temperature: 0.4,
			Prompt:      BuildPrompt(text, paper, profile, pageIndex, totalPages),
		},
		Reference:   providers.Blob{MIMEType: reference.MediaType, Data: reference.Data},
		AspectRatio: AspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d of %d: %w", pageIndex, totalPages, err)
	}

	for _, b := range blobs {
		if !b.IsImage() || len(b.Data) == 0 {
			continue
		}
		slog.Info("Rendered page", "page", pageIndex, "total", totalPages, "mime_type", b.MIMEType, "bytes", len(b.Data), "duration", time.Since(start))
		return &models.GeneratedPage{
			Index:     pageIndex,
			MIMEType:  b.MIMEType,
			Data:      b.Data,
			CreatedAt: time.Now(),
		}, nil
	}

	slog.Warn("Model returned no image for page", "page", pageIndex, "total", totalPages, "parts", len(blobs))
	return nil, nil
}

// BuildPrompt assembles the instructions sent with each page request
func BuildPrompt(text string, paper models.PaperType, profile models.StyleProfile, pageIndex, totalPages int) string {
	var sb strings.Builder

	sb.WriteString(`You are a handwriting forger. The attached image is a sample of one person's handwriting.
Write the text below as that person would, on a real sheet of paper, and return a photograph of the page.

REPLICATE THE HAND EXACTLY. DO NOT IMPROVE IT.
- Do NOT make letters a uniform size. Keep the sample's size inconsistency.
- Do NOT normalize or straighten the slant. Let it wander as it does in the sample.
- Do NOT clean up messiness: keep ink blots, pressure changes, bleed, smudges and corrections.
- Do NOT straighten the baseline. Lines should drift and undulate like the sample.
- Keep the writer's letterforms, ligatures and spacing habits.

`)

	fmt.Fprintf(&sb, "PAPER: %s.\n", paper.Descriptor())
	if profile.Description != "" {
		fmt.Fprintf(&sb, "STYLE: %s\n", profile.Description)
	}
	if profile.Slant != "" {
		fmt.Fprintf(&sb, "SLANT: %s\n", profile.Slant)
	}
	if profile.Pressure != "" {
		fmt.Fprintf(&sb, "PRESSURE: %s\n", profile.Pressure)
	}
	if profile.Spacing != "" {
		fmt.Fprintf(&sb, "SPACING: %s\n", profile.Spacing)
	}
	if profile.Quirks != "" {
		fmt.Fprintf(&sb, "QUIRKS: %s\n", profile.Quirks)
	}
	if totalPages > 1 {
		fmt.Fprintf(&sb, "This is page %d of %d.\n", pageIndex, totalPages)
	}

	sb.WriteString(`
OUTPUT: a realistic, slightly angled photograph of the physical handwritten page in natural light,
portrait orientation, with the full sheet visible. Write every word of the text and nothing else.

TEXT:
`)
	sb.WriteString(text)

	return sb.String()
}
