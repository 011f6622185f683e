// Package config provides configuration types for sessiongate.
//
// Configuration is file-based (sessiongate.yaml) with environment overrides.
// Browserbase and model-provider credentials are never part of it: they
// arrive with each stream and live only as long as the session.
package config

import (
	"time"
)

// Config is the top-level configuration for sessiongate.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Browserbase configures the remote-browser API client.
	Browserbase BrowserbaseConfig `yaml:"browserbase" mapstructure:"browserbase"`

	// Artifacts configures where per-session output is buffered.
	Artifacts ArtifactsConfig `yaml:"artifacts" mapstructure:"artifacts"`

	// DevMode enables development features (debug logging).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g., "0.0.0.0:3001").
	// Defaults to "0.0.0.0:3001". The PORT environment variable replaces its port.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// AllowedOrigins lists the CORS origins allowed to open streams.
	// Defaults to ["*"].
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`

	// ShutdownTimeout bounds graceful shutdown (e.g., "10s").
	// Defaults to "10s".
	ShutdownTimeout string `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"omitempty,duration"`

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string `yaml:"tls_cert_file" mapstructure:"tls_cert_file" validate:"required_with=TLSKeyFile"`
	TLSKeyFile  string `yaml:"tls_key_file" mapstructure:"tls_key_file" validate:"required_with=TLSCertFile"`
}

// BrowserbaseConfig configures the Browserbase API client.
type BrowserbaseConfig struct {
	// BaseURL is the API root. Defaults to https://api.browserbase.com/v1.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`

	// RequestTimeout bounds a single API call (e.g., "30s").
	// Defaults to "30s".
	RequestTimeout string `yaml:"request_timeout" mapstructure:"request_timeout" validate:"omitempty,duration"`

	// ReleaseTimeout bounds the release step of a session teardown, retries
	// included (e.g., "15s"). Defaults to "15s".
	ReleaseTimeout string `yaml:"release_timeout" mapstructure:"release_timeout" validate:"omitempty,duration"`
}

// ArtifactsConfig configures the artifact store.
type ArtifactsConfig struct {
	// Backend selects the store: "memory" or "redis". Defaults to "memory".
	Backend string `yaml:"backend" mapstructure:"backend" validate:"required,artifact_backend"`

	// TTL expires artifacts of abandoned sessions (e.g., "1h", "0" = never).
	// Teardown deletes them regardless. Defaults to "1h".
	TTL string `yaml:"ttl" mapstructure:"ttl" validate:"omitempty,duration"`

	// Redis configures the redis backend.
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig configures the redis artifact backend.
type RedisConfig struct {
	// Addr is the redis host:port. Required when Backend is "redis".
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`

	// DB selects the logical database.
	DB int `yaml:"db" mapstructure:"db" validate:"min=0"`

	// KeyPrefix is prepended to every key. Defaults to "sessiongate:artifacts:".
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// Duration parses s, which Validate has already checked.
// An empty or invalid value yields 0.
func Duration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// SetDevDefaults applies development-mode settings.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	c.Server.LogLevel = "debug"
}

// SetDefaults applies default values to unset fields.
func (c *Config) SetDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "0.0.0.0:3001"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}

	if c.Browserbase.BaseURL == "" {
		c.Browserbase.BaseURL = "https://api.browserbase.com/v1"
	}
	if c.Browserbase.RequestTimeout == "" {
		c.Browserbase.RequestTimeout = "30s"
	}
	if c.Browserbase.ReleaseTimeout == "" {
		c.Browserbase.ReleaseTimeout = "15s"
	}

	if c.Artifacts.Backend == "" {
		c.Artifacts.Backend = "memory"
	}
	if c.Artifacts.TTL == "" {
		c.Artifacts.TTL = "1h"
	}
	if c.Artifacts.Redis.KeyPrefix == "" {
		c.Artifacts.Redis.KeyPrefix = "sessiongate:artifacts:"
	}
}
