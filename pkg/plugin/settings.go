package plugin

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/sabio/insight-dash/pkg/transfer"
)

// PluginSettings holds the app plugin configuration
type PluginSettings struct {
	BackendURL     string `json:"backend_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// LoadSettings loads plugin settings from JSON
func LoadSettings(jsonData []byte) (*PluginSettings, error) {
	settings := &PluginSettings{}

	if len(jsonData) > 0 {
		if err := json.Unmarshal(jsonData, settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}

	if settings.BackendURL == "" {
		settings.BackendURL = transfer.DefaultBaseURL
	}
	return settings, nil
}

// Validate checks the backend URL and timeout
func (s *PluginSettings) Validate() error {
	u, err := url.Parse(s.BackendURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("backend_url %q must be an absolute http(s) URL", s.BackendURL)
	}

	if s.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative")
	}

	return nil
}

// Timeout returns the request timeout; zero means none.
func (s *PluginSettings) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}
