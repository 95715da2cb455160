package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the collector configuration.
const (
	DefaultHTTPPort     = 8080
	DefaultRetentionTTL = 15 * time.Minute
	DefaultMaxPerKey    = 10000
	DefaultMaxBodyBytes = 10 << 20
)

// Config holds the collector configuration parsed from the `server:` section
// of config.yaml. The `channel:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all collector settings.
type ServerConfig struct {
	// HTTPPort is the port the track endpoint and query API listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// AppID is returned in every batch response. Empty means a random id is
	// generated at startup.
	AppID string `yaml:"app_id"`

	// MaxBodyBytes caps a decompressed batch body (default 10 MiB).
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// Auth configures how the collector authenticates track requests.
	Auth AuthConfig `yaml:"auth"`

	// Retention controls how long accepted envelopes stay queryable.
	Retention RetentionConfig `yaml:"retention"`

	// Faults scripts failure responses for the first batches received, so
	// channel retry behaviour can be exercised end to end.
	Faults []FaultStep `yaml:"faults"`
}

// AuthConfig controls client authentication on the collector.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header name to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// RetentionConfig controls the in-memory envelope store.
type RetentionConfig struct {
	// TTL is how long an accepted envelope remains in the store. Default: 15m.
	TTL time.Duration `yaml:"ttl"`

	// MaxPerKey bounds the envelopes kept per instrumentation key; the oldest
	// are discarded first. Default: 10000.
	MaxPerKey int `yaml:"max_per_key"`
}

// FaultStep answers the next Count batches with Status instead of ingesting them.
type FaultStep struct {
	Status int `yaml:"status"`
	Count  int `yaml:"count"`
}

// Load reads and parses the config file at path, returning the collector configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	for i := range cfg.Server.Faults {
		if cfg.Server.Faults[i].Count == 0 {
			cfg.Server.Faults[i].Count = 1
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:     DefaultHTTPPort,
			MaxBodyBytes: DefaultMaxBodyBytes,
			Retention: RetentionConfig{
				TTL:       DefaultRetentionTTL,
				MaxPerKey: DefaultMaxPerKey,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	if s.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.Retention.TTL <= 0 {
		return fmt.Errorf("server.retention.ttl must be positive")
	}
	if s.Retention.MaxPerKey <= 0 {
		return fmt.Errorf("server.retention.max_per_key must be positive")
	}
	for i, f := range s.Faults {
		if f.Status < 400 || f.Status > 599 {
			return fmt.Errorf("server.faults[%d].status %d must be a 4xx or 5xx code", i, f.Status)
		}
		if f.Count < 0 {
			return fmt.Errorf("server.faults[%d].count must not be negative", i)
		}
	}
	return nil
}
