package models

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// StyleProfile describes a handwriting sample well enough to condition page synthesis
type StyleProfile struct {
	IsRecognizable bool   `json:"isRecognizable" yaml:"isrecognizable"`
	Slant          string `json:"slant,omitempty" yaml:"slant,omitempty"`
	Pressure       string `json:"pressure,omitempty" yaml:"pressure,omitempty"`
	Spacing        string `json:"spacing,omitempty" yaml:"spacing,omitempty"`
	Quirks         string `json:"quirks,omitempty" yaml:"quirks,omitempty"`
	Description    string `json:"description,omitempty" yaml:"description,omitempty"`
	FailureReason  string `json:"failureReason,omitempty" yaml:"failurereason,omitempty"`
}

// Empty reports whether nothing at all was extracted into the profile
func (p StyleProfile) Empty() bool {
	return p == StyleProfile{}
}

// PaperType is the background a generated page is drawn on
type PaperType string

const (
	PaperLined      PaperType = "lined"
	PaperGrid       PaperType = "grid"
	PaperPlain      PaperType = "plain"
	PaperAged       PaperType = "aged"
	PaperRuledLegal PaperType = "ruled-legal"
)

var ErrUnknownPaper = errors.New("unknown paper type")

var paperDescriptors = map[PaperType]string{
	PaperLined:      "standard white lined notebook paper with faint blue rules and a red margin line",
	PaperGrid:       "white graph paper with a light grey square grid",
	PaperPlain:      "plain unlined white printer paper",
	PaperAged:       "aged, yellowed parchment-like paper with uneven tone and soft creases",
	PaperRuledLegal: "yellow legal pad paper with blue horizontal rules and a double red margin line",
}

// PaperTypes lists every supported paper in display order
func PaperTypes() []PaperType {
	return []PaperType{PaperLined, PaperGrid, PaperPlain, PaperAged, PaperRuledLegal}
}

// ParsePaperType validates a user supplied paper name
func ParsePaperType(s string) (PaperType, error) {
	p := PaperType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := paperDescriptors[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPaper, s)
	}
	return p, nil
}

// Descriptor returns the phrase used to describe the paper to the image model
func (p PaperType) Descriptor() string {
	if d, ok := paperDescriptors[p]; ok {
		return d
	}
	return paperDescriptors[PaperLined]
}

// Sample is the reference handwriting uploaded by the user
type Sample struct {
	Filename  string `json:"filename"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"-"`
}

// IsImage reports whether the sample is a raster image rather than a document
func (s Sample) IsImage() bool {
	return strings.HasPrefix(s.MediaType, "image/")
}

// GeneratedPage is one rendered page, positioned by the chunk it was generated from
type GeneratedPage struct {
	Index     int       `json:"index"`
	MIMEType  string    `json:"mime_type"`
	Data      []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// DataURI encodes the page as a data URI
func (p GeneratedPage) DataURI() string {
	return "data:" + p.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// Extension returns the file extension matching the page's media type
func (p GeneratedPage) Extension() string {
	switch p.MIMEType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}

// ParseDataURI decodes a base64 data URI into its media type and payload
func ParseDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URI")
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("data URI is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data URI: %w", err)
	}
	return mediaType, data, nil
}

// Status is the coarse state of a session
type Status string

const (
	StatusIdle       Status = "idle"
	StatusAnalyzing  Status = "analyzing"
	StatusGenerating Status = "generating"
	StatusError      Status = "error"
)

// Progress counts pages attempted in the current generation run
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// SessionState is everything one user session knows.
// Values are treated as immutable; transitions build new ones.
type SessionState struct {
	Calibrated bool            `json:"calibrated"`
	Sample     *Sample         `json:"sample,omitempty"`
	Profile    *StyleProfile   `json:"profile,omitempty"`
	Status     Status          `json:"status"`
	Pages      []GeneratedPage `json:"pages"`
	Progress   Progress        `json:"progress"`
	Message    string          `json:"message,omitempty"`
	Epoch      uint64          `json:"epoch"`
}
