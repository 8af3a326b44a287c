package providers

import (
	"context"
	"os"
	"strings"
)

// Config represents the configuration for an LLM provider
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
}

// Blob is an inline binary payload sent to or returned by a provider
type Blob struct {
	MIMEType string
	Data     []byte
}

// IsImage reports whether the payload is an image
func (b Blob) IsImage() bool {
	return strings.HasPrefix(b.MIMEType, "image/")
}

// SchemaType enumerates the JSON types a response schema can use
type SchemaType string

const (
	TypeObject  SchemaType = "object"
	TypeString  SchemaType = "string"
	TypeBoolean SchemaType = "boolean"
)

// Schema is a minimal JSON schema used to constrain structured responses
type Schema struct {
	Type        SchemaType
	Description string
	Properties  map[string]*Schema
	// Order keeps property ordering stable for providers that care about it
	Order    []string
	Required []string
}

// JSON renders the schema in JSON Schema form
func (s *Schema) JSON() map[string]any {
	out := map[string]any{"type": string(s.Type)}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = p.JSON()
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}

// AnalysisRequest asks a model to describe a sample as structured JSON
type AnalysisRequest struct {
	Config
	Sample Blob
	Schema *Schema
}

// RenderRequest asks a model to produce an image from a reference and a prompt
type RenderRequest struct {
	Config
	Reference   Blob
	AspectRatio string
}

// Analyzer is a provider that can read an image or document and answer with text
type Analyzer interface {
	AnalyzeImage(ctx context.Context, req AnalysisRequest) (string, error)
}

// Renderer is a provider that can generate images.
// Payloads are returned in response order and may include non-image parts.
type Renderer interface {
	GenerateImage(ctx context.Context, req RenderRequest) ([]Blob, error)
}

// Env returns the first non-empty environment variable, or fallback
func Env(fallback string, keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return fallback
}
