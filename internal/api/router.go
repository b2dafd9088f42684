package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sonavox/speech-relay/internal/config"
	"github.com/sonavox/speech-relay/internal/websocket"
	"github.com/sonavox/speech-relay/pkg/logger"
)

// Router assembles the HTTP routes of the service
type Router struct {
	handler  *Handler
	wsServer *websocket.Server
	cfg      *config.Config
	logger   *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(cfg *config.Config, wsServer *websocket.Server, recognitionConfigured bool, log *logger.Logger) *Router {
	return &Router{
		handler:  NewHandler(wsServer, recognitionConfigured, log),
		wsServer: wsServer,
		cfg:      cfg,
		logger:   log.Named("router"),
	}
}

// Routes returns the HTTP handler with all routes configured
func (r *Router) Routes() http.Handler {
	mux := chi.NewRouter()

	mux.Use(corsMiddleware(r.cfg.Server.CORSAllowedOrigins))

	mux.Get("/api/v1/health", r.handler.GetHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Get("/ws", r.wsServer.HandleConnection)

	return mux
}

// corsMiddleware sets CORS headers for allowed origins. "*" allows any
// origin.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			origin := req.Header.Get("Origin")
			if origin != "" {
				for _, allowed := range allowedOrigins {
					if allowed == "*" || allowed == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						w.Header().Set("Vary", "Origin")
						break
					}
				}
			}

			if req.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}
