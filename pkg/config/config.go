package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// INSIGHT_DASH_BACKEND_BASE_URL.
const EnvPrefix = "INSIGHT_DASH"

// Config holds client configuration.
type Config struct {
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	Charts  ChartsConfig  `mapstructure:"charts" yaml:"charts"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
	MCP     MCPConfig     `mapstructure:"mcp" yaml:"mcp"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

type BackendConfig struct {
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

type OutputConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

type ChartsConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
}

type WatchConfig struct {
	Patterns []string `mapstructure:"patterns" yaml:"patterns"`
}

type MCPConfig struct {
	Transport      string  `mapstructure:"transport" yaml:"transport"`
	Addr           string  `mapstructure:"addr" yaml:"addr"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:   "http://localhost:8000/api",
			UserAgent: "insight-dash",
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Output:  OutputConfig{Dir: "insight-dash-output"},
		Charts:  ChartsConfig{Format: "json"},
		Watch:   WatchConfig{Patterns: []string{"*.csv", "*.xls", "*.xlsx"}},
		MCP: MCPConfig{
			Transport:      "stdio",
			Addr:           ":8090",
			RateLimitRPS:   5,
			RateLimitBurst: 10,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("backend.base_url", d.Backend.BaseURL)
	v.SetDefault("backend.timeout", d.Backend.Timeout)
	v.SetDefault("backend.user_agent", d.Backend.UserAgent)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("charts.format", d.Charts.Format)
	v.SetDefault("watch.patterns", d.Watch.Patterns)
	v.SetDefault("mcp.transport", d.MCP.Transport)
	v.SetDefault("mcp.addr", d.MCP.Addr)
	v.SetDefault("mcp.rate_limit_rps", d.MCP.RateLimitRPS)
	v.SetDefault("mcp.rate_limit_burst", d.MCP.RateLimitBurst)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
}

// Load reads .env (if present), then configFile or insight-dash.yaml from
// the working directory or ./configs, then INSIGHT_DASH_* environment
// variables. Later sources win.
func Load(configFile string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("insight-dash")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	// Comma-separated env lists may carry spaces.
	if raw := os.Getenv(EnvPrefix + "_WATCH_PATTERNS"); raw != "" {
		cfg.Watch.Patterns = splitList(raw)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if c.Backend.BaseURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url %q is not an absolute URL", c.Backend.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend.base_url scheme %q is not http or https", u.Scheme)
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must not be negative")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown logging.format %q", c.Logging.Format)
	}
	switch c.Charts.Format {
	case "json", "png":
	default:
		return fmt.Errorf("unknown charts.format %q", c.Charts.Format)
	}
	switch c.MCP.Transport {
	case "stdio", "sse":
	default:
		return fmt.Errorf("unknown mcp.transport %q", c.MCP.Transport)
	}

	if c.MCP.RateLimitRPS <= 0 {
		return fmt.Errorf("mcp.rate_limit_rps must be positive")
	}
	if c.MCP.RateLimitBurst <= 0 {
		return fmt.Errorf("mcp.rate_limit_burst must be positive")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
