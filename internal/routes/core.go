package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"botrelay/internal/config"
	"botrelay/internal/relay"
)

func CoreRoutes(r chi.Router, rl *relay.Relay) {
	r.Get("/health", handleHealth(rl))
	r.Get("/api/progress/{id}", handleProgress(rl))
}

func handleHealth(rl *relay.Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if !rl.Connected() {
			status = "degraded"
		}
		respondJSON(w, 200, map[string]interface{}{
			"status":               status,
			"version":              config.Version,
			"chatSessionConnected": rl.Connected(),
		})
	}
}

func handleProgress(rl *relay.Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		snap := rl.Progress(id)
		if snap == nil {
			respondJSON(w, 404, map[string]string{"error": "Unknown or expired request"})
			return
		}
		respondJSON(w, 200, snap)
	}
}
