package claude

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/lehigh-university-libraries/scrivener/internal/providers"
)

// Claude analyzes samples with Anthropic's Messages API. It has no image output.
type Claude struct {
	APIKey  string
	BaseURL string
}

// New returns a new Claude provider
func New() *Claude {
	return &Claude{
		APIKey:  providers.Env("", "ANTHROPIC_API_KEY"),
		BaseURL: providers.Env("", "ANTHROPIC_BASE_URL"),
	}
}

// AnalyzeImage asks Claude to describe the sample. Claude has no schema mode, so the
// schema is spelled out in the prompt and the reply is expected to be bare JSON.
func (c *Claude) AnalyzeImage(ctx context.Context, req providers.AnalysisRequest) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
	}
	if !req.Sample.IsImage() {
		return "", fmt.Errorf("claude analysis only accepts image samples, got %s", req.Sample.MIMEType)
	}

	opts := []option.RequestOption{option.WithAPIKey(c.APIKey)}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	prompt := req.Prompt
	if req.Schema != nil {
		prompt += "\n\nRespond with ONLY a JSON object with these fields: " + describeSchema(req.Schema)
	}

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.F(anthropic.Model(req.Model)),
		MaxTokens:   anthropic.F(int64(2048)),
		Temperature: anthropic.F(req.Temperature),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(req.Sample.MIMEType, base64.StdEncoding.EncodeToString(req.Sample.Data)),
				anthropic.NewTextBlock(prompt),
			),
		}),
	})
	if err != nil {
		return "", fmt.Errorf("claude api error: %w", err)
	}

	if len(message.Content) == 0 {
		return "", fmt.Errorf("empty response from claude")
	}

	return message.Content[0].Text, nil
}

func describeSchema(s *providers.Schema) string {
	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}

	fields := make([]string, 0, len(s.Order))
	for _, name := range s.Order {
		p, ok := s.Properties[name]
		if !ok {
			continue
		}
		f := fmt.Sprintf("%q (%s", name, p.Type)
		if required[name] {
			f += ", required"
		}
		f += ")"
		if p.Description != "" {
			f += ": " + p.Description
		}
		fields = append(fields, f)
	}
	return strings.Join(fields, "; ")
}
