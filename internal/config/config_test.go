package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfigFile(t, `
[server]
port = 9090
host = "127.0.0.1"
allowed_origins = ["https://app.example.com"]

[recognition]
credentials_path = "/etc/relay/credentials.json"
language = "uk-UA"
sample_rate_hz = 8000
model = "latest_long"
interim_results = false

[logging]
level = "debug"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1, got %s", cfg.Server.Host)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://app.example.com" {
		t.Errorf("unexpected allowed origins: %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Recognition.Language != "uk-UA" {
		t.Errorf("expected language uk-UA, got %s", cfg.Recognition.Language)
	}
	if cfg.Recognition.SampleRateHz != 8000 {
		t.Errorf("expected sample rate 8000, got %d", cfg.Recognition.SampleRateHz)
	}
	if cfg.Recognition.InterimResults {
		t.Error("expected interim_results to be disabled")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Logging.Level)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
[server]
port = 3000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Recognition.Model != "latest_short" {
		t.Errorf("expected default model latest_short, got %s", cfg.Recognition.Model)
	}
	if cfg.Recognition.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.Recognition.SampleRateHz)
	}
	if !cfg.Recognition.Punctuate {
		t.Error("expected punctuation enabled by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default level info, got %s", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestCredentialsEnvOverride(t *testing.T) {
	t.Setenv(CredentialsEnvVar, "/run/secrets/credentials.json")

	path := writeConfigFile(t, `
[recognition]
credentials_path = "configs/credentials.json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Recognition.CredentialsPath != "/run/secrets/credentials.json" {
		t.Errorf("expected env override, got %s", cfg.Recognition.CredentialsPath)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: true,
		},
		{
			name:    "port too large",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "no allowed origins",
			mutate:  func(c *Config) { c.Server.AllowedOrigins = nil },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "invalid sample rate",
			mutate:  func(c *Config) { c.Recognition.SampleRateHz = -1 },
			wantErr: true,
		},
		{
			name:    "empty language",
			mutate:  func(c *Config) { c.Recognition.Language = "" },
			wantErr: true,
		},
		{
			name:    "empty model",
			mutate:  func(c *Config) { c.Recognition.Model = "" },
			wantErr: true,
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Recognition.TimeoutSeconds = -5 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
