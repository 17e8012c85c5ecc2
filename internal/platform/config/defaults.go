package config

import "time"

// DefaultConfig returns the built-in configuration used when no config file
// is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8080,
			Auth: AuthConfig{
				Enabled: false,
			},
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "gateway.log",
		},
		Upstream: UpstreamConfig{
			RAGAPIURL:      "http://localhost:8000/resume/upload",
			AgentAPIURL:    "http://localhost:8001/api/pendo-agent",
			RequestTimeout: 60 * time.Second,
		},
		Upload: UploadConfig{
			MaxFileSize: 5 * 1024 * 1024,
			AllowedTypes: []string{
				"application/pdf",
				"application/msword",
				"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			},
			DefaultUserID: "anonymous",
		},
		RateLimit: RateLimitConfig{
			Enabled:   true,
			PerMinute: 60,
			Burst:     10,
			Store:     "memory",
		},
		Storage: StorageConfig{
			DSN: "data/gateway.db",
		},
	}
}
