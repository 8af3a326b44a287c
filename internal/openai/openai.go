package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/lehigh-university-libraries/scrivener/internal/providers"
)

const defaultBaseURL = "https://api.openai.com/v1"

// portraitSize is the closest size gpt-image models offer to a 3:4 page
const portraitSize = "1024x1536"

// OpenAI is a provider for OpenAI
type OpenAI struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a new OpenAI provider
func New() *OpenAI {
	return &OpenAI{
		APIKey:     providers.Env("", "OPENAI_API_KEY"),
		BaseURL:    providers.Env(defaultBaseURL, "OPENAI_BASE_URL"),
		HTTPClient: &http.Client{},
	}
}

func (o *OpenAI) client() *http.Client {
	if o.HTTPClient == nil {
		return http.DefaultClient
	}
	return o.HTTPClient
}

func (o *OpenAI) url(path string) string {
	base := o.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return strings.TrimSuffix(base, "/") + path
}

// AnalyzeImage sends the sample to the chat completions endpoint and returns the reply text
func (o *OpenAI) AnalyzeImage(ctx context.Context, req providers.AnalysisRequest) (string, error) {
	if o.APIKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	dataURI := "data:" + req.Sample.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(req.Sample.Data)

	var samplePart map[string]any
	if req.Sample.IsImage() {
		samplePart = map[string]any{
			"type":      "image_url",
			"image_url": map[string]string{"url": dataURI},
		}
	} else {
		samplePart = map[string]any{
			"type": "file",
			"file": map[string]string{
				"filename":  "sample.pdf",
				"file_data": dataURI,
			},
		}
	}

	body := map[string]any{
		"model": req.Model,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": req.Prompt},
					samplePart,
				},
			},
		},
		"temperature": req.Temperature,
	}
	if req.Schema != nil {
		body["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "style_profile",
				"schema": req.Schema.JSON(),
			},
		}
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.url("/chat/completions"), bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.APIKey)

	resp, err := o.client().Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from OpenAI")
	}

	return response.Choices[0].Message.Content, nil
}

// GenerateImage edits the reference image into a new page with the images API
func (o *OpenAI) GenerateImage(ctx context.Context, req providers.RenderRequest) ([]providers.Blob, error) {
	if o.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	if !req.Reference.IsImage() {
		return nil, fmt.Errorf("openai image edits require an image reference, got %s", req.Reference.MIMEType)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"model":  req.Model,
		"prompt": req.Prompt,
		"size":   portraitSize,
		"n":      "1",
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", k, err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image[]"; filename="reference`+extensionFor(req.Reference.MIMEType)+`"`)
	h.Set("Content-Type", req.Reference.MIMEType)
	fw, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create image part: %w", err)
	}
	if _, err := fw.Write(req.Reference.Data); err != nil {
		return nil, fmt.Errorf("failed to write image part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.url("/images/edits"), &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+o.APIKey)

	resp, err := o.client().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
		OutputFormat string `json:"output_format"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	mimeType := "image/png"
	if response.OutputFormat != "" {
		mimeType = "image/" + response.OutputFormat
	}

	blobs := make([]providers.Blob, 0, len(response.Data))
	for _, d := range response.Data {
		if d.B64JSON == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image data: %w", err)
		}
		blobs = append(blobs, providers.Blob{MIMEType: mimeType, Data: data})
	}

	return blobs, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
