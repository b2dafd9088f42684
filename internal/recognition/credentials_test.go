package recognition

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCredentialsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write credentials file: %v", err)
	}
	return path
}

func TestLoadCredentials(t *testing.T) {
	path := writeCredentialsFile(t, `{
		"api_key": "sk-test-123",
		"project_id": "relay-prod",
		"endpoint": "https://stt.internal.example.com"
	}`)

	creds, err := LoadCredentials(path)
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}

	if creds.APIKey != "sk-test-123" {
		t.Errorf("expected api key sk-test-123, got %s", creds.APIKey)
	}
	if creds.ProjectID != "relay-prod" {
		t.Errorf("expected project id relay-prod, got %s", creds.ProjectID)
	}
	if creds.Endpoint != "https://stt.internal.example.com" {
		t.Errorf("unexpected endpoint: %s", creds.Endpoint)
	}
}

func TestLoadCredentialsMissingFile(t *testing.T) {
	if _, err := LoadCredentials(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing credentials file")
	}
}

func TestLoadCredentialsInvalidJSON(t *testing.T) {
	path := writeCredentialsFile(t, `{not json`)
	if _, err := LoadCredentials(path); err == nil {
		t.Fatal("expected error for unparseable credentials file")
	}
}

func TestLoadCredentialsMissingAPIKey(t *testing.T) {
	path := writeCredentialsFile(t, `{"project_id": "relay-prod"}`)
	if _, err := LoadCredentials(path); err == nil {
		t.Fatal("expected error for credentials without api_key")
	}
}
