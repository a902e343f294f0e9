package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/zooly/config"
)

func TestRoot(t *testing.T) {
	w := httptest.NewRecorder()
	Root(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, RootBanner, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestHealth(t *testing.T) {
	persona, ok := config.Preset("zooly-mini")
	require.True(t, ok)

	w := httptest.NewRecorder()
	Health(persona)(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, HealthResponse{Status: "ok", Persona: "zooly-mini", Model: "gpt-4o-mini"}, resp)
}
