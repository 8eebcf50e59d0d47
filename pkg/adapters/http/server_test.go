package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/glaucoscan"
	httpadapter "github.com/aretw0/glaucoscan/pkg/adapters/http"
	"github.com/aretw0/glaucoscan/pkg/domain"
	"github.com/aretw0/glaucoscan/pkg/upload"
)

const testDelay = 50 * time.Millisecond

type part struct {
	field, name, mediaType string
	body                   []byte
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 5, 5))))
	return buf.Bytes()
}

func multipartBody(t *testing.T, parts ...part) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+p.field+`"; filename="`+p.name+`"`)
		h.Set("Content-Type", p.mediaType)
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(p.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func setup(t *testing.T, opts ...glaucoscan.Option) (*glaucoscan.Engine, http.Handler) {
	t.Helper()
	eng := glaucoscan.New(append([]glaucoscan.Option{glaucoscan.WithAnalysisDelay(testDelay)}, opts...)...)
	t.Cleanup(func() { _ = eng.Close() })
	return eng, httpadapter.NewHandler(eng)
}

func do(t *testing.T, h http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) domain.View {
	t.Helper()
	var v domain.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	w := do(t, h, "POST", "/sessions", nil, "")
	require.Equal(t, http.StatusCreated, w.Code)
	v := decodeView(t, w)
	require.NotEmpty(t, v.SessionID)
	return v.SessionID
}

func TestServer_FullWizard(t *testing.T) {
	_, h := setup(t)
	id := createSession(t, h)

	body, ct := multipartBody(t, part{"file", "fundus.png", "image/png", pngBytes(t)})
	w := do(t, h, "POST", "/sessions/"+id+"/upload", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	v := decodeView(t, w)
	assert.Equal(t, 2, v.Step)
	assert.Equal(t, domain.PanelReview, v.Panel)
	assert.True(t, v.ShowAnalyze)
	require.NotNil(t, v.Image)
	assert.True(t, strings.HasPrefix(v.Image.DataURI, "data:image/png;base64,"))

	w = do(t, h, "POST", "/sessions/"+id+"/analyze", nil, "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, domain.PanelProcessing, decodeView(t, w).Panel)

	require.Eventually(t, func() bool {
		w := do(t, h, "GET", "/sessions/"+id, nil, "")
		return w.Code == http.StatusOK && decodeView(t, w).Phase == domain.PhaseComplete
	}, 2*time.Second, 10*time.Millisecond)

	v = decodeView(t, do(t, h, "GET", "/sessions/"+id, nil, ""))
	require.NotNil(t, v.Result)
	assert.Equal(t, 94.2, v.Result.Confidence)
	require.NotNil(t, v.Heatmap)
	assert.Equal(t, v.Image.DataURI, v.Heatmap.Source)

	w = do(t, h, "POST", "/sessions/"+id+"/reset", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	v = decodeView(t, w)
	assert.Equal(t, domain.PanelUpload, v.Panel)
	assert.Nil(t, v.Image)
}

func TestServer_ErrorMapping(t *testing.T) {
	_, h := setup(t, glaucoscan.WithUploadHandler(upload.NewHandler(upload.WithMaxBytes(64), upload.WithStrictContent(true))))
	id := createSession(t, h)

	tests := []struct {
		name   string
		parts  []part
		path   string
		status int
		reason string
	}{
		{"pdf", []part{{"file", "notes.pdf", "application/pdf", []byte("%PDF-1.4")}}, "/upload", http.StatusUnsupportedMediaType, "not_an_image"},
		{"mismatch", []part{{"file", "fake.png", "image/png", []byte("just some text")}}, "/upload", http.StatusUnsupportedMediaType, "content_mismatch"},
		{"too large", []part{{"file", "big.png", "image/png", bytes.Repeat([]byte{1}, 200)}}, "/upload", http.StatusRequestEntityTooLarge, "too_large"},
		{"empty", []part{{"file", "empty.png", "image/png", nil}}, "/upload", http.StatusBadRequest, "empty"},
		{"missing field", []part{{"other", "a.png", "image/png", []byte("x")}}, "/upload", http.StatusBadRequest, "empty"},
		{"drop without image", []part{{"files", "a.txt", "text/plain", []byte("x")}}, "/drop", http.StatusUnsupportedMediaType, "not_an_image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.parts...)
			w := do(t, h, "POST", "/sessions/"+id+tt.path, body, ct)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			var resp httpadapter.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.reason, resp.Reason)
		})
	}

	v := decodeView(t, do(t, h, "GET", "/sessions/"+id, nil, ""))
	assert.Equal(t, domain.PhaseAwaitingUpload, v.Phase, "rejections must not move the wizard")

	assert.Equal(t, http.StatusConflict, do(t, h, "POST", "/sessions/"+id+"/analyze", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, "GET", "/sessions/missing", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, "POST", "/sessions/missing/reset", nil, "").Code)
}

func TestServer_DropPicksFirstImage(t *testing.T) {
	_, h := setup(t)
	id := createSession(t, h)

	body, ct := multipartBody(t,
		part{"files", "readme.txt", "text/plain", []byte("hi")},
		part{"files", "left.png", "image/png", pngBytes(t)},
		part{"files", "right.png", "image/png", pngBytes(t)},
	)
	w := do(t, h, "POST", "/sessions/"+id+"/drop", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "left.png", decodeView(t, w).Image.Name)
}

func TestServer_ListAndDelete(t *testing.T) {
	_, h := setup(t)
	a := createSession(t, h)
	b := createSession(t, h)

	var list httpadapter.ListResponse
	require.NoError(t, json.Unmarshal(do(t, h, "GET", "/sessions", nil, "").Body.Bytes(), &list))
	assert.ElementsMatch(t, []string{a, b}, list.Sessions)

	assert.Equal(t, http.StatusNoContent, do(t, h, "DELETE", "/sessions/"+a, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, "GET", "/sessions/"+a, nil, "").Code)
}

func TestServer_Graph(t *testing.T) {
	_, h := setup(t)
	id := createSession(t, h)

	w := do(t, h, "GET", "/graph", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "graph TD")
	assert.Contains(t, w.Body.String(), "⏱️ 50ms")
	assert.NotContains(t, w.Body.String(), "classDef")

	w = do(t, h, "GET", "/graph?session_id="+id, nil, "")
	assert.Contains(t, w.Body.String(), "class awaiting_upload current;")
}

func TestServer_Meta(t *testing.T) {
	_, h := setup(t)

	w := do(t, h, "GET", "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	var info map[string]string
	require.NoError(t, json.Unmarshal(do(t, h, "GET", "/info", nil, "").Body.Bytes(), &info))
	assert.Equal(t, glaucoscan.Version, info["version"])
	assert.Equal(t, "0.1.0", info["api_version"])

	w = do(t, h, "GET", "/openapi.yaml", nil, "")
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")

	w = do(t, h, "OPTIONS", "/sessions", nil, "")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Metrics(t *testing.T) {
	eng := glaucoscan.New()
	defer eng.Close()
	h := httpadapter.NewHandler(eng, httpadapter.WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("glaucoscan_up 1\n"))
	})))
	assert.Contains(t, do(t, h, "GET", "/metrics", nil, "").Body.String(), "glaucoscan_up")
}

func TestServer_SubscribeEvents(t *testing.T) {
	eng, h := setup(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	state, err := eng.Start(context.Background())
	require.NoError(t, err)
	id := state.SessionID

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL+"/sessions/"+id+"/events?watch=phase", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 32)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	require.Equal(t, "event: ping", <-lines)

	_, err = eng.Upload(context.Background(), id, upload.Input{
		Name: "fundus.png", MediaType: "image/png", Reader: bytes.NewReader(pngBytes(t)),
	})
	require.NoError(t, err)

	for line := range lines {
		if !strings.HasPrefix(line, "data: {") {
			continue
		}
		var diff domain.StateDiff
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &diff))
		require.NotNil(t, diff.Phase)
		assert.Equal(t, domain.PhaseReadyToAnalyze, *diff.Phase)
		assert.NotContains(t, line, "base64", "diffs must not carry image payloads")
		return
	}
	t.Fatal("no diff received")
}

func TestServer_SubscribeUnknownSession(t *testing.T) {
	_, h := setup(t)
	w := do(t, h, "GET", "/sessions/missing/events", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, httpadapter.StatusFor(glaucoscan.ErrClosed))
	assert.Equal(t, http.StatusConflict, httpadapter.StatusFor(domain.ErrStaleGeneration))
	assert.Equal(t, http.StatusInternalServerError, httpadapter.StatusFor(io.ErrUnexpectedEOF))
}
