package routes

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botrelay/internal/relay"
)

type stubClient struct {
	connected bool
}

func (s *stubClient) Connected() bool                           { return s.connected }
func (s *stubClient) SendText(channelID, content string) error  { return nil }
func (s *stubClient) SendReply(channelID, content, m string) error { return nil }

func apiServer(connected bool) *chi.Mux {
	rl := relay.New(&stubClient{connected: connected}, "bot-channel")
	r := chi.NewRouter()
	CoreRoutes(r, rl)
	DownloadRoutes(r, rl)
	return r
}

func TestHealth(t *testing.T) {
	h := apiServer(false)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, 200, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, false, body["chatSessionConnected"])
}

func TestDownloadWhileDisconnected(t *testing.T) {
	h := apiServer(false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/download", strings.NewReader(`{"url":"https://example.com/clip"}`))
	h.ServeHTTP(rec, req)

	assert.Equal(t, 503, rec.Code, "handlers fail fast instead of queuing work")
}

func TestDownloadRejectsBadURL(t *testing.T) {
	h := apiServer(true)

	for _, body := range []string{
		`{"url":""}`,
		`{"url":"ftp://example.com/x"}`,
		`{"url":"https://127.0.0.1/x"}`,
		`not json`,
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/download", strings.NewReader(body))
		h.ServeHTTP(rec, req)
		assert.Equal(t, 400, rec.Code, body)
	}
}

func TestDownloadFormatRequiresFormat(t *testing.T) {
	h := apiServer(true)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/download-format", strings.NewReader(`{"url":"https://example.com/x"}`))
	h.ServeHTTP(rec, req)

	assert.Equal(t, 400, rec.Code)
}

func TestDownloadFormatWithoutMenu(t *testing.T) {
	h := apiServer(true)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/download-format", strings.NewReader(`{"url":"https://example.com/x","format":"720p"}`))
	h.ServeHTTP(rec, req)

	require.Equal(t, 400, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "menu")
}

func TestProgressUnknownID(t *testing.T) {
	h := apiServer(true)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/progress/nope", nil))

	assert.Equal(t, 404, rec.Code)
}
