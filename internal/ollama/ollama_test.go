package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/scrivener/internal/providers"
)

func TestAnalyzeImage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected path /api/generate, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"{\"isRecognizable\":false}"}`))
	}))
	defer srv.Close()

	o := &Ollama{URL: srv.URL, HTTPClient: srv.Client()}
	out, err := o.AnalyzeImage(context.Background(), providers.AnalysisRequest{
		Config: providers.Config{Model: "llava", Prompt: "look"},
		Sample: providers.Blob{MIMEType: "image/png", Data: []byte("x")},
		Schema: &providers.Schema{Type: providers.TypeObject, Required: []string{"isRecognizable"}},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out != `{"isRecognizable":false}` {
		t.Errorf("Expected raw response, got %s", out)
	}
	if got["stream"] != false {
		t.Errorf("Expected stream=false, got %v", got["stream"])
	}
	if _, ok := got["format"].(map[string]any); !ok {
		t.Errorf("Expected schema in format, got %v", got["format"])
	}
	if images, ok := got["images"].([]any); !ok || len(images) != 1 {
		t.Errorf("Expected one image, got %v", got["images"])
	}
}

func TestAnalyzeImageRejectsDocuments(t *testing.T) {
	o := &Ollama{URL: "http://127.0.0.1:0"}
	_, err := o.AnalyzeImage(context.Background(), providers.AnalysisRequest{
		Sample: providers.Blob{MIMEType: "application/pdf"},
	})
	if err == nil {
		t.Fatal("Expected error for PDF sample")
	}
}
