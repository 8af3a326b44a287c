package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/lehigh-university-libraries/scrivener/internal/providers"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Gemini is a provider for Google Gemini
type Gemini struct {
	APIKey  string
	BaseURL string
	// HTTPClient overrides the API key transport used for image generation
	HTTPClient *http.Client
}

// New returns a new Gemini provider
func New() *Gemini {
	return &Gemini{
		APIKey:  providers.Env("", "GEMINI_API_KEY"),
		BaseURL: providers.Env(defaultBaseURL, "GEMINI_BASE_URL"),
	}
}

// AnalyzeImage sends the sample and prompt to Gemini and returns the JSON text of the reply
func (g *Gemini) AnalyzeImage(ctx context.Context, req providers.AnalysisRequest) (string, error) {
	if g.APIKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.APIKey))
	if err != nil {
		return "", fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(req.Model)
	model.SetTemperature(float32(req.Temperature))
	if req.Schema != nil {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = toGenaiSchema(req.Schema)
	}

	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: req.Sample.MIMEType, Data: req.Sample.Data},
		genai.Text(req.Prompt),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content returned from Gemini")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("unexpected response format from Gemini")
	}

	return sb.String(), nil
}

func toGenaiSchema(s *providers.Schema) *genai.Schema {
	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
	}
	switch s.Type {
	case providers.TypeObject:
		out.Type = genai.TypeObject
	case providers.TypeBoolean:
		out.Type = genai.TypeBoolean
	default:
		out.Type = genai.TypeString
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = toGenaiSchema(p)
		}
	}
	return out
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature        float64      `json:"temperature"`
	ResponseModalities []string     `json:"responseModalities"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

// GenerateImage calls the generateContent REST endpoint with image output enabled.
// The Go SDK does not expose response modalities or image configuration.
func (g *Gemini) GenerateImage(ctx context.Context, req providers.RenderRequest) ([]providers.Blob, error) {
	if g.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	httpClient := g.HTTPClient
	if httpClient == nil {
		c, _, err := htransport.NewClient(ctx, option.WithAPIKey(g.APIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini http client: %w", err)
		}
		httpClient = c
	}

	body := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{
					MimeType: req.Reference.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(req.Reference.Data),
				}},
				{Text: req.Prompt},
			},
		}},
		GenerationConfig: generationConfig{
			Temperature:        req.Temperature,
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}
	if req.AspectRatio != "" {
		body.GenerationConfig.ImageConfig = &imageConfig{AspectRatio: req.AspectRatio}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	baseURL := g.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	url := strings.TrimSuffix(baseURL, "/") + "/v1beta/models/" + req.Model + ":generateContent"

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.HTTPClient != nil {
		httpReq.Header.Set("x-goog-api-key", g.APIKey)
	}

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(respBody))
	}

	var response generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	var blobs []providers.Blob
	for _, c := range response.Candidates {
		for _, p := range c.Content.Parts {
			if p.InlineData == nil {
				if p.Text != "" {
					slog.Debug("Gemini returned text alongside image", "text", p.Text)
				}
				continue
			}
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to decode inline data: %w", err)
			}
			blobs = append(blobs, providers.Blob{MIMEType: p.InlineData.MimeType, Data: data})
		}
	}

	return blobs, nil
}
