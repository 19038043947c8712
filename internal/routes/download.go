package routes

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"botrelay/internal/chat"
	"botrelay/internal/relay"
	"botrelay/internal/util"
)

func DownloadRoutes(r chi.Router, rl *relay.Relay) {
	r.Post("/api/download", handleDownload(rl))
	r.Post("/api/formats", handleFormats(rl))
	r.Post("/api/download-format", handleDownloadFormat(rl))
}

type downloadRequest struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

func handleDownload(rl *relay.Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req downloadRequest
		if err := decodeJSON(r, &req); err != nil {
			respondJSON(w, 400, map[string]string{"error": "Invalid JSON body"})
			return
		}
		if check := util.ValidateURL(req.URL); !check.Valid {
			respondJSON(w, 400, map[string]string{"error": check.Error})
			return
		}
		if !rl.Connected() {
			respondNotConnected(w)
			return
		}

		file, err := rl.Download(req.URL)
		if err != nil {
			respondRelayError(w, err)
			return
		}

		respondJSON(w, 200, map[string]string{
			"videoUrl": "/downloads/" + file.Name,
			"fileName": file.Name,
		})
	}
}

func handleFormats(rl *relay.Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req downloadRequest
		if err := decodeJSON(r, &req); err != nil {
			respondJSON(w, 400, map[string]string{"error": "Invalid JSON body"})
			return
		}
		if check := util.ValidateURL(req.URL); !check.Valid {
			respondJSON(w, 400, map[string]string{"error": check.Error})
			return
		}
		if !rl.Connected() {
			respondNotConnected(w)
			return
		}

		formats, err := rl.Formats(req.URL)
		if err != nil {
			respondRelayError(w, err)
			return
		}

		respondJSON(w, 200, map[string]interface{}{"formats": formats})
	}
}

func handleDownloadFormat(rl *relay.Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req downloadRequest
		if err := decodeJSON(r, &req); err != nil {
			respondJSON(w, 400, map[string]string{"error": "Invalid JSON body"})
			return
		}
		if req.Format == "" {
			respondJSON(w, 400, map[string]string{"error": "Format is required"})
			return
		}
		if !rl.Connected() {
			respondNotConnected(w)
			return
		}

		requestID, err := rl.DownloadFormat(req.URL, req.Format)
		if err != nil {
			respondRelayError(w, err)
			return
		}

		log.Printf("[API] Format download %s started (%s)", shortID(requestID), req.Format)
		respondJSON(w, 200, map[string]string{"requestId": requestID})
	}
}

func respondNotConnected(w http.ResponseWriter) {
	respondJSON(w, 503, map[string]string{"error": "Chat session is not connected"})
}

func respondRelayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, relay.ErrTimeout):
		respondJSON(w, 408, map[string]string{"error": err.Error()})
	case errors.Is(err, chat.ErrNotConnected):
		respondNotConnected(w)
	case errors.Is(err, relay.ErrNoMenu), errors.Is(err, relay.ErrUnknownFormat):
		respondJSON(w, 400, map[string]string{"error": err.Error()})
	default:
		respondJSON(w, 502, map[string]string{"error": err.Error()})
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
