package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sonavox/speech-relay/internal/api"
	"github.com/sonavox/speech-relay/internal/config"
	"github.com/sonavox/speech-relay/internal/metrics"
	"github.com/sonavox/speech-relay/internal/recognition"
	"github.com/sonavox/speech-relay/internal/session"
	"github.com/sonavox/speech-relay/internal/websocket"
	"github.com/sonavox/speech-relay/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting speech relay server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	// Load recognition credentials. A missing or broken credential file
	// disables recognition but the service still starts; clients get a
	// configuration error when they try to stream.
	var gateway recognition.Streamer
	creds, err := recognition.LoadCredentials(cfg.Recognition.CredentialsPath)
	if err != nil {
		log.Warn("Recognition backend disabled",
			logger.Error(err),
			logger.String("credentials_path", cfg.Recognition.CredentialsPath))
	} else {
		gateway = recognition.NewClient(creds, cfg.Recognition.BaseURL, cfg.Recognition.TimeoutSeconds, log)
		log.Info("Recognition backend configured",
			logger.String("model", cfg.Recognition.Model),
			logger.String("language", cfg.Recognition.Language))
	}

	// Create metrics
	m := metrics.NewDefault()

	// Fixed stream configuration shared by every session
	streamCfg := recognition.StreamConfig{
		Encoding:       cfg.Recognition.Encoding,
		SampleRateHz:   cfg.Recognition.SampleRateHz,
		Language:       cfg.Recognition.Language,
		Punctuate:      cfg.Recognition.Punctuate,
		Model:          cfg.Recognition.Model,
		InterimResults: cfg.Recognition.InterimResults,
	}

	// Each connection gets its own session controller; the client itself
	// acts as the session's event emitter.
	factory := func(connectionID string, client *websocket.Client) websocket.SessionController {
		return session.NewController(connectionID, gateway, streamCfg, client, m, log)
	}

	// Create WebSocket server
	wsServer := websocket.NewServer(cfg.Server.AllowedOrigins, factory, m, log)
	go wsServer.Run()

	// Create API router
	router := api.NewRouter(cfg, wsServer, gateway != nil, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.String("addr", addr), logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	// Close client connections first so their sessions tear down their
	// recognition streams.
	wsServer.CloseAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Server fully stopped")
}
