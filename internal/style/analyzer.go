// Package style derives a handwriting style profile from a reference sample.
package style

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/lehigh-university-libraries/scrivener/internal/models"
	"github.com/lehigh-university-libraries/scrivener/internal/providers"
)

// AnalysisError is returned when the remote model could not be reached or failed
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string {
	return "style analysis failed: " + e.Err.Error()
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Analyzer turns a handwriting sample into a StyleProfile
type Analyzer struct {
	provider providers.Analyzer
	model    string
}

// NewAnalyzer returns an analyzer backed by the given provider and model
func NewAnalyzer(provider providers.Analyzer, model string) *Analyzer {
	return &Analyzer{provider: provider, model: model}
}

// Model returns the model name used for analysis
func (a *Analyzer) Model() string {
	return a.model
}

const analysisPrompt = `You are a forensic document examiner who specialises in handwriting.

Step 1: Decide whether the supplied image or document contains legible human handwriting that
could be imitated. Printed text, blank pages, drawings, photographs of objects and illegible
scribbles do NOT count. Set "isRecognizable" accordingly. If it is false, explain why in
"failureReason" and stop.

Step 2 (only if the handwriting is recognizable): describe the hand precisely enough that a
forger could reproduce its imperfections. Do not idealise it. Cover:
  - slant: the dominant slant and how much it varies from letter to letter
  - spacing: letter and word spacing, and how inconsistent letter sizes are
  - pressure: stroke weight, pressure changes, ink bleed, pooling and feathering
  - description: an overall description including how the baseline drifts across a line
  - quirks: idiosyncratic letterforms, ligatures, crossed or dotted letters, corrections

Return only the structured object.`

var profileSchema = &providers.Schema{
	Type: providers.TypeObject,
	Properties: map[string]*providers.Schema{
		"isRecognizable": {Type: providers.TypeBoolean, Description: "true if the sample is usable handwriting"},
		"slant":          {Type: providers.TypeString, Description: "slant and slant variability"},
		"pressure":       {Type: providers.TypeString, Description: "pressure, stroke weight and ink bleed"},
		"spacing":        {Type: providers.TypeString, Description: "letter and word spacing and size inconsistency"},
		"quirks":         {Type: providers.TypeString, Description: "idiosyncratic letterforms and habits"},
		"description":    {Type: providers.TypeString, Description: "overall description including baseline drift"},
		"failureReason":  {Type: providers.TypeString, Description: "why the sample is not usable, when isRecognizable is false"},
	},
	Order:    []string{"isRecognizable", "slant", "pressure", "spacing", "quirks", "description", "failureReason"},
	Required: []string{"isRecognizable"},
}

// Schema returns the response schema requested from the model
func Schema() *providers.Schema {
	return profileSchema
}

// Analyze sends the sample to the model and parses the style profile it returns.
// A reply that cannot be parsed yields an empty profile, which callers must treat as
// unrecognizable; only a failed remote call is an error.
func (a *Analyzer) Analyze(ctx context.Context, sample []byte, mediaType string) (models.StyleProfile, error) {
	raw, err := a.provider.AnalyzeImage(ctx, providers.AnalysisRequest{
		Config: providers.Config{
			Model:       a.model,
			Temperature: 0.2,
			Prompt:      analysisPrompt,
		},
		Sample: providers.Blob{MIMEType: mediaType, Data: sample},
		Schema: profileSchema,
	})
	if err != nil {
		return models.StyleProfile{}, &AnalysisError{Err: err}
	}

	profile := ParseProfile(raw)
	slog.Info("Analyzed handwriting sample", "model", a.model, "recognizable", profile.IsRecognizable, "bytes", len(sample))
	return profile, nil
}

// ParseProfile decodes a model reply into a profile, stripping markdown fences.
// Unparseable input yields the zero profile.
func ParseProfile(response string) models.StyleProfile {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	var profile models.StyleProfile
	if err := json.Unmarshal([]byte(response), &profile); err != nil {
		slog.Warn("Failed to parse style profile", "err", err)
		return models.StyleProfile{}
	}
	return profile
}

// FailureMessage is the text shown when a sample is rejected
func FailureMessage(profile models.StyleProfile) string {
	if profile.FailureReason != "" {
		return profile.FailureReason
	}
	return "We couldn't recognize handwriting in this sample. Please try a clearer photo."
}
