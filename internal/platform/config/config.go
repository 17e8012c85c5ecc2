package config

import (
	"time"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Upload    UploadConfig    `yaml:"upload"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Storage   StorageConfig   `yaml:"storage"`
}

type ServerConfig struct {
	IP    string     `yaml:"ip"`
	Port  int        `yaml:"port"`
	Token string     `yaml:"token"`
	Auth  AuthConfig `yaml:"auth"`
}

// AuthConfig controls local bearer-token verification. When disabled the
// gateway only checks that a credential is present and forwards it upstream.
type AuthConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

// UpstreamConfig holds the two backend processor endpoints. RAGAPIURL is the
// direct document pipeline; AgentAPIURL is the agent invocation pipeline used
// as fallback.
type UpstreamConfig struct {
	RAGAPIURL      string        `yaml:"rag_api_url"`
	AgentAPIURL    string        `yaml:"agent_api_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type UploadConfig struct {
	MaxFileSize   int64    `yaml:"max_file_size"`
	AllowedTypes  []string `yaml:"allowed_types"`
	DefaultUserID string   `yaml:"default_user_id"`
}

type RateLimitConfig struct {
	Enabled   bool             `yaml:"enabled"`
	PerMinute int              `yaml:"per_minute"`
	Burst     int              `yaml:"burst"`
	Store     string           `yaml:"store"`
	Redis     RedisStoreConfig `yaml:"redis,omitempty"`
}

type RedisStoreConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

type StorageConfig struct {
	DSN string `yaml:"dsn"`
}
