package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sonavox/speech-relay/internal/config"
	"github.com/sonavox/speech-relay/internal/metrics"
	"github.com/sonavox/speech-relay/internal/websocket"
	"github.com/sonavox/speech-relay/pkg/logger"
)

func newTestWSServer() *websocket.Server {
	factory := func(connectionID string, client *websocket.Client) websocket.SessionController {
		return nil
	}
	return websocket.NewServer([]string{"*"}, factory, metrics.New(prometheus.NewRegistry()), logger.NewNop())
}

func TestGetHealth(t *testing.T) {
	handler := NewHandler(newTestWSServer(), true, logger.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	handler.GetHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse health response: %v", err)
	}

	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	if body["recognition_configured"] != true {
		t.Errorf("expected recognition_configured true, got %v", body["recognition_configured"])
	}
	if _, ok := body["uptime_seconds"]; !ok {
		t.Error("expected uptime_seconds in health response")
	}
	if got, ok := body["active_connections"].(float64); !ok || got != 0 {
		t.Errorf("expected 0 active connections, got %v", body["active_connections"])
	}
}

func TestGetHealthRecognitionNotConfigured(t *testing.T) {
	handler := NewHandler(newTestWSServer(), false, logger.NewNop())

	rec := httptest.NewRecorder()
	handler.GetHealth(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse health response: %v", err)
	}
	if body["recognition_configured"] != false {
		t.Errorf("expected recognition_configured false, got %v", body["recognition_configured"])
	}
}

func TestRoutes(t *testing.T) {
	cfg := config.DefaultConfig()
	router := NewRouter(cfg, newTestWSServer(), true, logger.NewNop())

	srv := httptest.NewServer(router.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health: expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics: expected 200, got %d", resp.StatusCode)
	}
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := corsMiddleware([]string{"https://app.example.com"})(next)

	// Preflight from an allowed origin.
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight: expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("preflight: unexpected allow-origin %q", got)
	}

	// A request from an unlisted origin gets no CORS headers.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin: unexpected allow-origin %q", got)
	}

	// The wildcard allows everyone.
	wrapped = corsMiddleware([]string{"*"})(next)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://anywhere.example.com" {
		t.Errorf("wildcard: unexpected allow-origin %q", got)
	}
}
