package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/teilomillet/zooly/config"
)

// RootBanner is the liveness text served on GET /.
const RootBanner = "LINE GPT Webhook is running!"

// Root serves the plain-text liveness banner.
func Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, RootBanner)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Persona string `json:"persona"`
	Model   string `json:"model"`
}

// Health reports the active persona and model. Secrets are never included.
func Health(persona config.PersonaConfig) http.HandlerFunc {
	body := HealthResponse{
		Status:  "ok",
		Persona: persona.Name,
		Model:   persona.Model,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}
}
