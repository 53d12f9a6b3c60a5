package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.Equal(t, "http://localhost:8000/api", cfg.Backend.BaseURL)
	assert.Zero(t, cfg.Backend.Timeout)
	assert.Equal(t, []string{"*.csv", "*.xls", "*.xlsx"}, cfg.Watch.Patterns)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.MkdirAll("configs", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("configs", "insight-dash.yaml"), []byte(`
backend:
  base_url: http://analytics:8000/api
  timeout: 45s
charts:
  format: png
watch:
  patterns: ["*.csv"]
`), 0o644))

	t.Setenv("INSIGHT_DASH_LOGGING_LEVEL", "debug")
	t.Setenv("INSIGHT_DASH_MCP_RATE_LIMIT_RPS", "2.5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://analytics:8000/api", cfg.Backend.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "png", cfg.Charts.Format)
	assert.Equal(t, []string{"*.csv"}, cfg.Watch.Patterns)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 2.5, cfg.MCP.RateLimitRPS)
}

func TestLoadDotEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile(".env", []byte("INSIGHT_DASH_BACKEND_BASE_URL=https://dash.example.com/api\n"), 0o644))
	// Register for cleanup; godotenv sets the variable for the process.
	t.Setenv("INSIGHT_DASH_BACKEND_BASE_URL", "")
	require.NoError(t, os.Unsetenv("INSIGHT_DASH_BACKEND_BASE_URL"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://dash.example.com/api", cfg.Backend.BaseURL)
}

func TestLoadWatchPatternsFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("INSIGHT_DASH_WATCH_PATTERNS", "*.csv, reports/**/*.xlsx")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"*.csv", "reports/**/*.xlsx"}, cfg.Watch.Patterns)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("INSIGHT_DASH_CHARTS_FORMAT", "svg")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "charts.format")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "empty url", mutate: func(c *Config) { c.Backend.BaseURL = "" }, wantErr: "base_url"},
		{name: "relative url", mutate: func(c *Config) { c.Backend.BaseURL = "/api" }, wantErr: "base_url"},
		{name: "ftp url", mutate: func(c *Config) { c.Backend.BaseURL = "ftp://host/api" }, wantErr: "scheme"},
		{name: "negative timeout", mutate: func(c *Config) { c.Backend.Timeout = -time.Second }, wantErr: "timeout"},
		{name: "log level", mutate: func(c *Config) { c.Logging.Level = "trace" }, wantErr: "logging.level"},
		{name: "log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
		{name: "mcp transport", mutate: func(c *Config) { c.MCP.Transport = "grpc" }, wantErr: "mcp.transport"},
		{name: "rps", mutate: func(c *Config) { c.MCP.RateLimitRPS = 0 }, wantErr: "rate_limit_rps"},
		{name: "burst", mutate: func(c *Config) { c.MCP.RateLimitBurst = -1 }, wantErr: "rate_limit_burst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
