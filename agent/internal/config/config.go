package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultEndpointURL       = "https://dc.services.visualstudio.com/v2/track"
	DefaultMaxBatchInterval  = 15 * time.Second
	DefaultMaxBatchSizeBytes = 102400
	DefaultSamplingPct       = 100.0
	DefaultSendTimeout       = 10 * time.Second
	DefaultMetricsAddr       = ":9464"
	DefaultAPIKeyHeader      = "x-api-key"
)

// Config is the top-level configuration file.
type Config struct {
	Channel ChannelConfig `yaml:"channel"`
}

// ChannelConfig holds the settings the sender pipeline consumes.
type ChannelConfig struct {
	// EndpointURL is the collector track endpoint batches are POSTed to.
	EndpointURL string `yaml:"endpoint_url"`

	// InstrumentationKey identifies the destination resource on every envelope.
	InstrumentationKey string `yaml:"instrumentation_key"`

	// MaxBatchInterval is how long items wait in the buffer before a flush.
	MaxBatchInterval time.Duration `yaml:"max_batch_interval"`

	// MaxBatchSizeBytes is the byte budget of one batch body. An item that
	// would push the buffer past it flushes the existing buffer first.
	MaxBatchSizeBytes int `yaml:"max_batch_size_bytes"`

	// DisableTelemetry turns Process into a no-op and flushes into drops.
	DisableTelemetry bool `yaml:"disable_telemetry"`

	// EnableDurableBuffer mirrors pending items to StorageDir so they
	// survive a restart. Ignored when the storage is unusable.
	EnableDurableBuffer bool `yaml:"enable_durable_buffer"`

	// StorageDir is the directory backing the durable buffer. Empty means
	// in-process storage only.
	StorageDir string `yaml:"storage_dir"`

	// StorageKeyPrefix namespaces the durable buffer keys.
	StorageKeyPrefix string `yaml:"storage_key_prefix"`

	// IsRetryDisabled drops failed batches instead of re-queueing them.
	IsRetryDisabled bool `yaml:"is_retry_disabled"`

	// DisableFireAndForgetTransport prevents binding the fire-and-forget
	// transport, which has no response visibility and therefore no retries.
	DisableFireAndForgetTransport bool `yaml:"disable_fire_and_forget_transport"`

	// EmitLineDelimitedJSON batches as newline-delimited JSON instead of an array.
	EmitLineDelimitedJSON bool `yaml:"emit_line_delimited_json"`

	// SamplingPercentage keeps this share (0–100) of non-metric items.
	SamplingPercentage float64 `yaml:"sampling_percentage"`

	// CompressBatches gzips batch bodies.
	CompressBatches bool `yaml:"compress_batches"`

	// SendTimeout bounds a single transport request.
	SendTimeout time.Duration `yaml:"send_timeout"`

	// Auth configures how the channel authenticates to the collector.
	Auth AuthConfig `yaml:"auth"`

	// MetricsAddr is the listen address of the agent's /metrics endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// AuthConfig specifies how the channel authenticates to the collector.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header name to send the key in (default x-api-key).
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default x-api-key.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return DefaultAPIKeyHeader
}

// Load reads and parses the config file at path. Files ending in .json or
// .jsonc may contain comments and trailing commas. Missing optional fields
// are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is a subset of YAML, so the same decoder and tags apply.
		data = jsonc.ToJSON(data)
	}

	cfg := &Config{Channel: DefaultChannel()}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	if err := Validate(cfg.Channel); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// DefaultChannel returns a ChannelConfig pre-populated with default values.
func DefaultChannel() ChannelConfig {
	return ChannelConfig{
		EndpointURL:                   DefaultEndpointURL,
		MaxBatchInterval:              DefaultMaxBatchInterval,
		MaxBatchSizeBytes:             DefaultMaxBatchSizeBytes,
		EnableDurableBuffer:           true,
		DisableFireAndForgetTransport: true,
		SamplingPercentage:            DefaultSamplingPct,
		SendTimeout:                   DefaultSendTimeout,
		MetricsAddr:                   DefaultMetricsAddr,
	}
}

// Validate checks required fields and structural constraints.
func Validate(c ChannelConfig) error {
	if c.InstrumentationKey == "" {
		return fmt.Errorf("channel.instrumentation_key is required")
	}
	u, err := url.Parse(c.EndpointURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("channel.endpoint_url %q must be an absolute http(s) URL", c.EndpointURL)
	}
	if c.MaxBatchInterval <= 0 {
		return fmt.Errorf("channel.max_batch_interval must be positive")
	}
	if c.MaxBatchSizeBytes <= 0 {
		return fmt.Errorf("channel.max_batch_size_bytes must be positive")
	}
	if c.SamplingPercentage < 0 || c.SamplingPercentage > 100 {
		return fmt.Errorf("channel.sampling_percentage %v is out of range [0, 100]", c.SamplingPercentage)
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("channel.send_timeout must be positive")
	}
	switch c.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("channel.auth.mode %q unknown: want apikey|none", c.Auth.Mode)
	}
	return nil
}
