// Package config loads and validates proxy configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level proxy configuration, loaded from a TOML file
// with [server], [passthrough], [target], [tracing] sections plus a
// top-level default_mode.
type Config struct {
	DefaultMode        string         `koanf:"default_mode"`
	AllowAnthropicOnly bool           `koanf:"allow_anthropic_only"`
	Server             ServerConfig   `koanf:"server"`
	Passthrough        UpstreamConfig `koanf:"passthrough"`
	Target             UpstreamConfig `koanf:"target"`
	Tracing            TracingConfig  `koanf:"tracing"`
}

// ServerConfig holds the listener's HTTP settings.
type ServerConfig struct {
	Addr         string        `koanf:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// UpstreamConfig holds the settings shared by both the passthrough and
// target upstreams: a base URL and the per-request timeout used when
// forwarding to it. MaxConcurrent is only meaningful on Target, where it
// bounds the compare dispatcher's semaphore.
type UpstreamConfig struct {
	URL           string        `koanf:"url"`
	Timeout       time.Duration `koanf:"timeout"`
	APIKey        string        `koanf:"api_key"`
	MaxConcurrent int64         `koanf:"max_concurrent"`
}

// TracingConfig holds the OTLP exporter settings and the initial value
// of the runtime tracing toggle.
type TracingConfig struct {
	Enabled         bool   `koanf:"enabled"`
	OTLPEndpoint    string `koanf:"otlp_endpoint"`
}

// Load reads configuration from a TOML file, layers CC_/SHADOW_-prefixed
// environment variable overrides on top (double underscore separates
// nesting, e.g. CC_SERVER__ADDR -> server.addr), and returns a fully
// populated Config.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}

	for _, prefix := range []string{"CC_", "SHADOW_"} {
		if err := k.Load(env.Provider(prefix, ".", func(s string) string {
			return strings.ReplaceAll(
				strings.ToLower(strings.TrimPrefix(s, prefix)),
				"__", ".",
			)
		}), nil); err != nil {
			return nil, fmt.Errorf("loading env vars (%s): %w", prefix, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.DefaultMode == "" {
		cfg.DefaultMode = "target"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Target.MaxConcurrent == 0 {
		cfg.Target.MaxConcurrent = 4
	}
	if cfg.Passthrough.Timeout == 0 {
		cfg.Passthrough.Timeout = 60 * time.Second
	}
	if cfg.Target.Timeout == 0 {
		cfg.Target.Timeout = 60 * time.Second
	}

	return &cfg, nil
}
