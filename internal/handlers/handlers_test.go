package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lehigh-university-libraries/scrivener/internal/generation"
	"github.com/lehigh-university-libraries/scrivener/internal/models"
	"github.com/lehigh-university-libraries/scrivener/internal/providers"
	"github.com/lehigh-university-libraries/scrivener/internal/render"
	"github.com/lehigh-university-libraries/scrivener/internal/scribing"
	"github.com/lehigh-university-libraries/scrivener/internal/style"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	reply string
	page  []byte
}

func (f *fakeProvider) AnalyzeImage(ctx context.Context, req providers.AnalysisRequest) (string, error) {
	return f.reply, nil
}

func (f *fakeProvider) GenerateImage(ctx context.Context, req providers.RenderRequest) ([]providers.Blob, error) {
	return []providers.Blob{{MIMEType: "image/png", Data: f.page}}, nil
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 30, 40))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	for y := 0; y < 40; y += 5 {
		img.Set(10, y, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	fake := &fakeProvider{reply: reply, page: testPNG(t)}
	service := &scribing.Service{
		Analyzer: style.NewAnalyzer(fake, "fake-analysis"),
		Renderer: render.NewRenderer(fake, "fake-render"),
	}
	srv := httptest.NewServer(New(service).Routes(1000))
	t.Cleanup(srv.Close)
	return srv
}

func createSession(t *testing.T, srv *httptest.Server) SessionView {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/sessions/", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var view SessionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	require.NotEmpty(t, view.ID)
	return view
}

func uploadSample(t *testing.T, srv *httptest.Server, id, filename string, data []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/sessions/"+id+"/sample", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func getSession(t *testing.T, srv *httptest.Server, id string) SessionView {
	t.Helper()
	resp, err := http.Get(srv.URL + "/api/sessions/" + id + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	var view SessionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	return view
}

const recognizable = `{"isRecognizable": true, "slant": "right", "description": "loose cursive"}`

func TestSessionFlow(t *testing.T) {
	srv := newTestServer(t, recognizable)
	view := createSession(t, srv)
	base := srv.URL + "/api/sessions/" + view.ID

	resp := postJSON(t, base+"/generate", `{"text": "hello"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)

	resp = uploadSample(t, srv, view.ID, "hand.png", testPNG(t))
	var calibrated SessionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&calibrated))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, calibrated.Calibrated)
	require.NotNil(t, calibrated.Profile)
	assert.Equal(t, "right", calibrated.Profile.Slant)

	resp = uploadSample(t, srv, view.ID, "hand.png", testPNG(t))
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = postJSON(t, base+"/generate", `{"text": "hello", "paper": "papyrus"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, base+"/generate", `{"text": "   "}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, base+"/generate", `{"text": "Dear Ada, the garden is lovely this year.", "paper": "grid"}`)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		v := getSession(t, srv, view.ID)
		return v.Status == models.StatusIdle && len(v.Pages) == 1
	}, 2*time.Second, 10*time.Millisecond)

	done := getSession(t, srv, view.ID)
	assert.Equal(t, models.Progress{Current: 1, Total: 1}, done.Progress)
	assert.Equal(t, "/api/sessions/"+view.ID+"/pages/1", done.Pages[0].URL)
	assert.NotEmpty(t, done.PDFURL)

	resp, err := http.Get(base + "/pages/1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "page-001.png")

	resp, err = http.Get(base + "/pages/2")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(base + "/pdf")
	require.NoError(t, err)
	var pdf bytes.Buffer
	_, err = pdf.ReadFrom(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(pdf.Bytes(), []byte("%PDF")))

	resp = postJSON(t, base+"/reset", "")
	var reset SessionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reset))
	resp.Body.Close()
	assert.False(t, reset.Calibrated)
	assert.Empty(t, reset.Pages)
	assert.Empty(t, reset.PDFURL)

	resp, err = http.Get(base + "/pdf")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRejectedSample(t *testing.T) {
	srv := newTestServer(t, `{"isRecognizable": false, "failureReason": "This looks like printed text."}`)
	view := createSession(t, srv)

	resp := uploadSample(t, srv, view.ID, "hand.png", testPNG(t))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var rejected SessionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rejected))
	assert.False(t, rejected.Calibrated)
	assert.Equal(t, "This looks like printed text.", rejected.Message)
}

func TestUnsupportedSample(t *testing.T) {
	srv := newTestServer(t, recognizable)
	view := createSession(t, srv)

	resp := uploadSample(t, srv, view.ID, "notes.txt", []byte("plain words, not an image"))
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownSession(t *testing.T) {
	srv := newTestServer(t, recognizable)

	for _, path := range []string{"/", "/pdf", "/pages/1"} {
		resp, err := http.Get(srv.URL + "/api/sessions/nope" + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestPapers(t *testing.T) {
	srv := newTestServer(t, recognizable)

	resp, err := http.Get(srv.URL + "/api/papers")
	require.NoError(t, err)
	defer resp.Body.Close()

	var papers []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&papers))
	require.Len(t, papers, len(models.PaperTypes()))
	assert.Equal(t, "lined", papers[0].Name)
}

func TestEventsStream(t *testing.T) {
	srv := newTestServer(t, recognizable)
	view := createSession(t, srv)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + view.ID + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first generation.Event
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, generation.EventState, first.Type)
	assert.Equal(t, models.StatusIdle, first.Status)
	assert.False(t, first.Calibrated)

	resp := uploadSample(t, srv, view.ID, "hand.png", testPNG(t))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/api/sessions/"+view.ID+"/generate", `{"text": "a short note"}`)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var sawPage bool
	for {
		var e generation.Event
		require.NoError(t, conn.ReadJSON(&e))
		if e.Type == generation.EventPage {
			sawPage = true
			assert.True(t, strings.HasPrefix(e.DataURI, "data:image/png;base64,"))
		}
		if e.Type == generation.EventDone {
			break
		}
	}
	assert.True(t, sawPage)
}

func TestGenerateBodyTooLarge(t *testing.T) {
	srv := newTestServer(t, recognizable)
	view := createSession(t, srv)
	base := srv.URL + "/api/sessions/" + view.ID

	resp := uploadSample(t, srv, view.ID, "hand.png", testPNG(t))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	text := strings.Repeat("word ", MaxGenerateBytes/5+1)
	resp = postJSON(t, base+"/generate", `{"text": "`+text+`"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	assert.Equal(t, models.StatusIdle, getSession(t, srv, view.ID).Status)
}
