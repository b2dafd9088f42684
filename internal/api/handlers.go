package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sonavox/speech-relay/internal/websocket"
	"github.com/sonavox/speech-relay/pkg/logger"
)

// Handler contains the HTTP handlers for the API
type Handler struct {
	wsServer              *websocket.Server
	recognitionConfigured bool
	startTime             time.Time
	logger                *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(wsServer *websocket.Server, recognitionConfigured bool, log *logger.Logger) *Handler {
	return &Handler{
		wsServer:              wsServer,
		recognitionConfigured: recognitionConfigured,
		startTime:             time.Now(),
		logger:                log.Named("api"),
	}
}

// GetHealth returns the health status of the service, including whether
// recognition credentials are configured
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":                 "ok",
		"uptime_seconds":         int64(time.Since(h.startTime).Seconds()),
		"recognition_configured": h.recognitionConfigured,
		"active_connections":     h.wsServer.ClientCount(),
	}

	WriteJSON(w, http.StatusOK, response)
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
