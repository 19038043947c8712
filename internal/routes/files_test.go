package routes

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botrelay/internal/config"
)

func fileServer(t *testing.T, name string, content []byte) http.Handler {
	t.Helper()
	dir := t.TempDir()
	old := config.DownloadDir
	config.DownloadDir = dir
	t.Cleanup(func() { config.DownloadDir = old })

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), content, 0644))

	r := chi.NewRouter()
	FileRoutes(r)
	return r
}

func thousandBytes() []byte {
	b := make([]byte, 1000)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func TestServeFullFile(t *testing.T) {
	content := thousandBytes()
	h := fileServer(t, "video-20260830-120000.mp4", content)

	req := httptest.NewRequest("GET", "/downloads/video-20260830-120000.mp4", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "1000", rec.Header().Get("Content-Length"))
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, content, rec.Body.Bytes())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "inline")
}

func TestServeByteRange(t *testing.T) {
	content := thousandBytes()
	h := fileServer(t, "video-20260830-120000.mp4", content)

	req := httptest.NewRequest("GET", "/downloads/video-20260830-120000.mp4", nil)
	req.Header.Set("Range", "bytes=100-199")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 206, rec.Code)
	assert.Equal(t, "bytes 100-199/1000", rec.Header().Get("Content-Range"))
	assert.Equal(t, "100", rec.Header().Get("Content-Length"))
	assert.Len(t, rec.Body.Bytes(), 100)
	assert.Equal(t, content[100:200], rec.Body.Bytes())
}

func TestServeOpenEndedRange(t *testing.T) {
	content := thousandBytes()
	h := fileServer(t, "audio-20260830-120000.mp3", content)

	req := httptest.NewRequest("GET", "/downloads/audio-20260830-120000.mp3", nil)
	req.Header.Set("Range", "bytes=900-")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 206, rec.Code)
	assert.Equal(t, "bytes 900-999/1000", rec.Header().Get("Content-Range"))
	assert.Equal(t, content[900:], rec.Body.Bytes())
}

func TestServeSuffixRange(t *testing.T) {
	content := thousandBytes()
	h := fileServer(t, "video-20260830-120000.mp4", content)

	req := httptest.NewRequest("GET", "/downloads/video-20260830-120000.mp4", nil)
	req.Header.Set("Range", "bytes=-100")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 206, rec.Code)
	assert.Equal(t, "bytes 900-999/1000", rec.Header().Get("Content-Range"))
}

func TestServeUnsatisfiableRange(t *testing.T) {
	h := fileServer(t, "video-20260830-120000.mp4", thousandBytes())

	req := httptest.NewRequest("GET", "/downloads/video-20260830-120000.mp4", nil)
	req.Header.Set("Range", "bytes=5000-6000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 416, rec.Code)
	assert.Equal(t, "bytes */1000", rec.Header().Get("Content-Range"))
}

func TestServeAttachmentDisposition(t *testing.T) {
	h := fileServer(t, "video-20260830-120000.mp4", thousandBytes())

	req := httptest.NewRequest("GET", "/downloads/video-20260830-120000.mp4?dl=1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
}

func TestServeMissingFile(t *testing.T) {
	h := fileServer(t, "video-20260830-120000.mp4", thousandBytes())

	req := httptest.NewRequest("GET", "/downloads/nope.mp4", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 404, rec.Code)
}

func TestParseRange(t *testing.T) {
	cases := []struct {
		header     string
		start, end int64
		ok         bool
	}{
		{"bytes=0-499", 0, 499, true},
		{"bytes=100-199", 100, 199, true},
		{"bytes=500-", 500, 999, true},
		{"bytes=-100", 900, 999, true},
		{"bytes=0-5000", 0, 999, true}, // end clamped to file size
		{"bytes=1000-1100", 0, 0, false},
		{"bytes=200-100", 0, 0, false},
		{"bytes=0-99,200-299", 0, 0, false}, // multi-range unsupported
		{"items=0-99", 0, 0, false},
		{"bytes=", 0, 0, false},
	}
	for _, tc := range cases {
		start, end, ok := parseRange(tc.header, 1000)
		assert.Equal(t, tc.ok, ok, tc.header)
		if tc.ok {
			assert.Equal(t, tc.start, start, tc.header)
			assert.Equal(t, tc.end, end, tc.header)
		}
	}
}
