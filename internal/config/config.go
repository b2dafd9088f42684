package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server      ServerConfig      `toml:"server"`      // HTTP server settings
	Recognition RecognitionConfig `toml:"recognition"` // Speech recognition backend settings
	Logging     LoggingConfig     `toml:"logging"`     // Application logging settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	AllowedOrigins     []string `toml:"allowed_origins"`       // Origins accepted during the WebSocket handshake (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout, required for long-lived WebSocket connections)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
}

// RecognitionConfig contains settings for the streaming speech recognition backend
type RecognitionConfig struct {
	CredentialsPath string `toml:"credentials_path"` // Path to the backend credentials JSON file
	BaseURL         string `toml:"base_url"`         // Optional backend base URL override (e.g., for proxies)
	TimeoutSeconds  int    `toml:"timeout_seconds"`  // HTTP timeout for backend API requests in seconds

	// Fixed stream configuration sent with every session
	Language       string `toml:"language"`        // Primary language for transcription (e.g., "en-US")
	SampleRateHz   int    `toml:"sample_rate_hz"`  // Audio sample rate in Hz (typically 16000)
	Encoding       string `toml:"encoding"`        // Audio encoding (e.g., "linear16" for signed 16-bit little-endian PCM)
	Model          string `toml:"model"`           // Recognition model variant (e.g., "latest_short" for short utterances)
	Punctuate      bool   `toml:"punctuate"`       // Enable automatic punctuation
	InterimResults bool   `toml:"interim_results"` // Request interim (partial) results in addition to final ones
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// CredentialsEnvVar overrides the configured credentials path when set.
const CredentialsEnvVar = "SPEECH_RELAY_CREDENTIALS"

// DefaultConfig returns a configuration populated with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               8080,
			Host:               "0.0.0.0",
			CORSAllowedOrigins: []string{"*"},
			AllowedOrigins:     []string{"*"},
			ReadTimeoutSecs:    30,
			WriteTimeoutSecs:   0,
			IdleTimeoutSecs:    60,
		},
		Recognition: RecognitionConfig{
			CredentialsPath: "configs/credentials.json",
			TimeoutSeconds:  30,
			Language:        "en-US",
			SampleRateHz:    16000,
			Encoding:        "linear16",
			Model:           "latest_short",
			Punctuate:       true,
			InterimResults:  true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads and parses the configuration file at the given path
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	if env := os.Getenv(CredentialsEnvVar); env != "" {
		cfg.Recognition.CredentialsPath = env
	}

	return cfg, nil
}

// LoadWithFallback loads configuration from the given path, or searches
// well-known locations when no path is provided. When no config file is
// found at all, defaults are returned.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	candidates := []string{
		filepath.Join("configs", "config.toml"),
		"config.toml",
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return Load(candidate)
		}
	}

	cfg := DefaultConfig()
	if env := os.Getenv(CredentialsEnvVar); env != "" {
		cfg.Recognition.CredentialsPath = env
	}
	return cfg, nil
}

// Validate checks the configuration for invalid or inconsistent values
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if len(c.Server.AllowedOrigins) == 0 {
		return fmt.Errorf("server.allowed_origins must not be empty (use [\"*\"] to allow any origin)")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %q", c.Logging.Level)
	}

	if c.Recognition.SampleRateHz <= 0 {
		return fmt.Errorf("invalid recognition sample rate: %d", c.Recognition.SampleRateHz)
	}

	if c.Recognition.Language == "" {
		return fmt.Errorf("recognition language must not be empty")
	}

	if c.Recognition.Model == "" {
		return fmt.Errorf("recognition model must not be empty")
	}

	if c.Recognition.TimeoutSeconds < 0 {
		return fmt.Errorf("recognition timeout must not be negative: %d", c.Recognition.TimeoutSeconds)
	}

	return nil
}
