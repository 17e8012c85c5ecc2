package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader reads configuration from a yaml file with environment overrides.
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader that reads .config.yaml from the working
// directory and honours a .env file.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		path:      ".config.yaml",
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the configuration file location (useful for tests).
func (l *Loader) WithPath(path string) *Loader {
	if path != "" {
		l.path = path
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load reads the config file, falling back to defaults when it is missing,
// then applies environment overrides and validates the result.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			fmt.Println("no .env file found, using system environment")
		}
	}

	cfg := DefaultConfig()
	path := "defaults"

	if data, err := os.ReadFile(l.path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", l.path, err)
		}
		path = l.path
	}

	applyEnvOverrides(cfg)

	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{
		Config: cfg,
		Path:   path,
	}, nil
}

// applyEnvOverrides maps the environment variables the deployment already
// uses onto the config struct. Env always wins over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RAG_API_URL"); v != "" {
		cfg.Upstream.RAGAPIURL = v
	}
	if v := os.Getenv("AGENT_API_URL"); v != "" {
		cfg.Upstream.AgentAPIURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GATEWAY_TOKEN"); v != "" {
		cfg.Server.Token = v
	}
	if v := os.Getenv("UPSTREAM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Upstream.RequestTimeout = d
		}
	}
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Upstream.RAGAPIURL == "" {
		return fmt.Errorf("upstream.rag_api_url is required")
	}
	if cfg.Upstream.AgentAPIURL == "" {
		return fmt.Errorf("upstream.agent_api_url is required")
	}
	if cfg.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("upload.max_file_size must be positive")
	}
	if cfg.RateLimit.Enabled && cfg.RateLimit.PerMinute <= 0 {
		return fmt.Errorf("rate_limit.per_minute must be positive when enabled")
	}
	return nil
}
