// Package samples validates and prepares uploaded handwriting samples.
package samples

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/scrivener/internal/models"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
)

// MaxBytes caps the size of an uploaded sample
const MaxBytes = 10 * 1024 * 1024

// MaxDimension is the longest side sent to the model; larger images are shrunk
const MaxDimension = 2048

var (
	ErrUnsupportedMediaType = errors.New("unsupported sample type, upload an image or a PDF")
	ErrTooLarge             = errors.New("file too large (max 10MB)")
	ErrEmpty                = errors.New("sample is empty")
)

// DetectMediaType sniffs the content, falling back to the file extension
func DetectMediaType(data []byte, filename string) string {
	sniffed := http.DetectContentType(data)
	if i := strings.Index(sniffed, ";"); i >= 0 {
		sniffed = sniffed[:i]
	}
	if sniffed != "application/octet-stream" && sniffed != "text/plain" {
		return sniffed
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		if i := strings.Index(byExt, ";"); i >= 0 {
			byExt = byExt[:i]
		}
		return byExt
	}
	return sniffed
}

// Load validates raw upload bytes and returns a sample ready for analysis
func Load(data []byte, filename string) (models.Sample, error) {
	if len(data) == 0 {
		return models.Sample{}, ErrEmpty
	}
	if len(data) >= MaxBytes {
		return models.Sample{}, ErrTooLarge
	}

	mediaType := DetectMediaType(data, filename)
	if !strings.HasPrefix(mediaType, "image/") && mediaType != "application/pdf" {
		return models.Sample{}, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mediaType)
	}

	sample := models.Sample{Filename: filepath.Base(filename), MediaType: mediaType, Data: data}
	return Downscale(sample, MaxDimension), nil
}

// ReadFile loads a sample from disk
func ReadFile(path string) (models.Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Sample{}, fmt.Errorf("failed to read sample: %w", err)
	}
	return Load(data, path)
}

// Downscale shrinks images whose longest side exceeds maxDim. Documents, undecodable
// images and images already small enough are returned unchanged.
func Downscale(sample models.Sample, maxDim int) models.Sample {
	if !sample.IsImage() {
		return sample
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(sample.Data))
	if err != nil {
		slog.Warn("Failed to read sample dimensions", "filename", sample.Filename, "err", err)
		return sample
	}
	if cfg.Width <= maxDim && cfg.Height <= maxDim {
		return sample
	}

	img, _, err := image.Decode(bytes.NewReader(sample.Data))
	if err != nil {
		slog.Warn("Failed to decode sample", "filename", sample.Filename, "err", err)
		return sample
	}

	thumb := resize.Thumbnail(uint(maxDim), uint(maxDim), img, resize.Lanczos3)

	var buf bytes.Buffer
	mediaType := "image/png"
	if sample.MediaType == "image/jpeg" {
		mediaType = "image/jpeg"
		err = jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 90})
	} else {
		err = png.Encode(&buf, thumb)
	}
	if err != nil {
		slog.Warn("Failed to encode downscaled sample", "filename", sample.Filename, "err", err)
		return sample
	}

	b := thumb.Bounds()
	slog.Info("Downscaled sample", "filename", sample.Filename, "from", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height), "to", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()))

	sample.MediaType = mediaType
	sample.Data = buf.Bytes()
	return sample
}
