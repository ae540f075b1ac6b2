// Package config defines the service configuration, its defaults, YAML
// loading and validation.
//
// A missing server address is the only fatal configuration error; nickname
// and TLS misconfiguration degrade gracefully at the component that consumes
// them.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/playerlist/errors"
)

// Duration wraps time.Duration so YAML values like "10m" parse naturally.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"10m\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	HTTP      HTTPConfig      `yaml:"http"`
	Nicknames NicknamesConfig `yaml:"nicknames"`
	Cache     CacheConfig     `yaml:"cache"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Avatar    AvatarConfig    `yaml:"avatar"`
	NATS      NATSConfig      `yaml:"nats"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Refresh   RefreshConfig   `yaml:"refresh"`
}

// ServerConfig identifies the game server being watched.
type ServerConfig struct {
	// Address is the game server address queried against the status API.
	// Required; startup fails without it.
	Address string `yaml:"address"`
}

// HTTPConfig configures the HTTP surface.
type HTTPConfig struct {
	Port int       `yaml:"port"`
	TLS  TLSConfig `yaml:"tls"`
}

// TLSConfig configures the optional secondary HTTPS listener.
// Port 0 disables it.
type TLSConfig struct {
	Port     int    `yaml:"port"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Enabled reports whether the TLS listener is configured.
func (t TLSConfig) Enabled() bool {
	return t.Port > 0
}

// NicknamesConfig configures the curated nickname store.
// An empty path disables nicknames entirely.
type NicknamesConfig struct {
	Path            string   `yaml:"path"`
	RefreshInterval Duration `yaml:"refresh_interval"`
}

// CacheConfig configures the profile cache.
type CacheConfig struct {
	TTL Duration `yaml:"ttl"`
}

// UpstreamConfig configures the two upstream API clients.
type UpstreamConfig struct {
	StatusBaseURL  string   `yaml:"status_base_url"`
	ProfileBaseURL string   `yaml:"profile_base_url"`
	Timeout        Duration `yaml:"timeout"`
	// LookupRate caps profile lookups per second; LookupBurst allows short
	// bursts above the sustained rate.
	LookupRate  float64 `yaml:"lookup_rate"`
	LookupBurst int     `yaml:"lookup_burst"`
}

// AvatarConfig configures avatar URL construction.
type AvatarConfig struct {
	BaseURL string `yaml:"base_url"`
	Size    int    `yaml:"size"`
}

// NATSConfig configures the optional snapshot publisher.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// MetricsConfig gates the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// RefreshConfig configures the cache warm-up scheduler.
type RefreshConfig struct {
	// Workers is the size of the lookup worker pool.
	Workers int `yaml:"workers"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{Port: 3000},
		Nicknames: NicknamesConfig{
			RefreshInterval: Duration(60 * time.Second),
		},
		Cache: CacheConfig{TTL: Duration(10 * time.Minute)},
		Upstream: UpstreamConfig{
			StatusBaseURL:  "https://api.mcsrvstat.us/2",
			ProfileBaseURL: "https://api.ashcon.app/mojang/v2/user",
			Timeout:        Duration(5 * time.Second),
			LookupRate:     10,
			LookupBurst:    5,
		},
		Avatar: AvatarConfig{
			BaseURL: "https://crafatar.com/avatars",
			Size:    32,
		},
		NATS: NATSConfig{
			URL:     "nats://localhost:4222",
			Subject: "playerlist.status",
		},
		Metrics: MetricsConfig{Enabled: true},
		Refresh: RefreshConfig{Workers: 4},
	}
}

// LoadFile reads a YAML configuration file over the defaults.
// Unknown keys are rejected.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "LoadFile", "read config file")
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.WrapInvalid(err, "config", "LoadFile", "parse config file")
	}

	return cfg, nil
}

// Validate checks the configuration for startup.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return errors.WrapFatal(errors.ErrMissingConfig, "config", "Validate", "server.address")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("http.port %d out of range", c.HTTP.Port))
	}
	if c.HTTP.TLS.Port < 0 || c.HTTP.TLS.Port > 65535 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			fmt.Sprintf("http.tls.port %d out of range", c.HTTP.TLS.Port))
	}
	if c.HTTP.TLS.Enabled() && (c.HTTP.TLS.CertFile == "" || c.HTTP.TLS.KeyFile == "") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"http.tls requires both cert_file and key_file")
	}
	if c.Cache.TTL.Std() <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", "cache.ttl must be positive")
	}
	if c.Nicknames.Path != "" && c.Nicknames.RefreshInterval.Std() <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
			"nicknames.refresh_interval must be positive")
	}
	if c.Upstream.StatusBaseURL == "" || c.Upstream.ProfileBaseURL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", "upstream base URLs")
	}
	if c.Upstream.Timeout.Std() <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", "upstream.timeout must be positive")
	}
	if c.Refresh.Workers <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", "refresh.workers must be positive")
	}
	return nil
}
