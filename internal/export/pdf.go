// Package export writes generated pages out as files and PDFs.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"

	"github.com/jung-kurt/gofpdf"
	"github.com/lehigh-university-libraries/scrivener/internal/models"
	_ "golang.org/x/image/webp"
)

// A4 portrait in millimetres
const (
	pageWidth  = 210.0
	pageHeight = 297.0
	margin     = 10.0
)

var ErrNoPages = errors.New("no pages to export")

// WritePDF writes one A4 page per generated image, in order
func WritePDF(w io.Writer, pages []models.GeneratedPage) error {
	if len(pages) == 0 {
		return ErrNoPages
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	for i, page := range pages {
		data, imageType, err := embeddable(page)
		if err != nil {
			return fmt.Errorf("failed to prepare page %d: %w", page.Index, err)
		}

		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to read page %d dimensions: %w", page.Index, err)
		}

		name := fmt.Sprintf("page-%d", i+1)
		opts := gofpdf.ImageOptions{ImageType: imageType}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))

		x, y, w, h := fit(float64(cfg.Width), float64(cfg.Height))
		pdf.AddPage()
		pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")

		if err := pdf.Error(); err != nil {
			return fmt.Errorf("failed to add page %d: %w", page.Index, err)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	slog.Info("Exported PDF", "pages", len(pages))
	return nil
}

// fit scales an image into the printable area, centred, keeping its aspect ratio
func fit(imgW, imgH float64) (x, y, w, h float64) {
	maxW := pageWidth - 2*margin
	maxH := pageHeight - 2*margin
	if imgW <= 0 || imgH <= 0 {
		return margin, margin, maxW, maxH
	}

	scale := maxW / imgW
	if imgH*scale > maxH {
		scale = maxH / imgH
	}
	w = imgW * scale
	h = imgH * scale
	x = (pageWidth - w) / 2
	y = (pageHeight - h) / 2
	return x, y, w, h
}

// embeddable returns image bytes in a format gofpdf understands
func embeddable(page models.GeneratedPage) ([]byte, string, error) {
	switch page.MIMEType {
	case "image/png":
		return page.Data, "PNG", nil
	case "image/jpeg", "image/jpg":
		return page.Data, "JPG", nil
	case "image/gif":
		return page.Data, "GIF", nil
	}

	img, _, err := image.Decode(bytes.NewReader(page.Data))
	if err != nil {
		return nil, "", fmt.Errorf("unsupported image type %s: %w", page.MIMEType, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("failed to re-encode %s as PNG: %w", page.MIMEType, err)
	}
	return buf.Bytes(), "PNG", nil
}
