package recognition

import (
	"encoding/json"
	"fmt"
	"os"
)

// Credentials is the structured credential payload for the recognition
// backend, loaded from a JSON file at startup.
type Credentials struct {
	APIKey    string `json:"api_key"`
	ProjectID string `json:"project_id"`
	Endpoint  string `json:"endpoint,omitempty"` // optional per-credential endpoint override
}

// LoadCredentials reads and parses the credentials file at the given path.
// A missing or unparseable file is reported as an error; callers are
// expected to continue without recognition support in that case.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", path, err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file %s: %w", path, err)
	}

	if creds.APIKey == "" {
		return nil, fmt.Errorf("credentials file %s is missing api_key", path)
	}

	return &creds, nil
}
