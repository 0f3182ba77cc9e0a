// Package config loads the service configuration from a YAML or JSON file
// with optional environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/openroad/roadassist/core/dispatch"
	"github.com/openroad/roadassist/core/metrics"
	"github.com/openroad/roadassist/infra/mqtt"
	"github.com/openroad/roadassist/infra/payment"
)

type Config struct {
	HTTP     HTTPConfig      `json:"http"`
	Auth     AuthConfig      `json:"auth"`
	MQTT     mqtt.Config     `json:"mqtt"`
	Dispatch dispatch.Config `json:"dispatch"`
	Metrics  metrics.Config  `json:"metrics"`
	Logging  LoggingConfig   `json:"logging"`
	Payment  payment.Config  `json:"payment"`
	Storage  StorageConfig   `json:"storage"`
	Disputes DisputesConfig  `json:"disputes"`
	Sentry   SentryConfig    `json:"sentry"`
}

// HTTPConfig defines the API listener.
type HTTPConfig struct {
	Addr string `json:"addr"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// AuthConfig defines JWT issuance and verification.
type AuthConfig struct {
	Secret   string `json:"secret"`
	Issuer   string `json:"issuer"`
	TTLHours int    `json:"ttl_hours"`
}

func (c *AuthConfig) SetDefaults() {
	if c.Issuer == "" {
		c.Issuer = "roadassist"
	}
	if c.TTLHours <= 0 {
		c.TTLHours = 24
	}
}

func (c AuthConfig) Validate() error {
	if c.Secret == "" {
		return fmt.Errorf("auth secret is required")
	}
	return nil
}

// StorageConfig defines where breakdown photos are kept. An empty Dir keeps
// blobs in memory, which only makes sense for tests and demos.
type StorageConfig struct {
	Dir string `json:"dir"`
}

// DisputesConfig selects the dispute store backend.
type DisputesConfig struct {
	Backend string `json:"backend"`
	Path    string `json:"path"`
}

func (c *DisputesConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "sqlite"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "disputes.db"
	}
}

func (c DisputesConfig) Validate() error {
	switch c.Backend {
	case "sqlite", "memory":
		return nil
	default:
		return fmt.Errorf("unknown dispute store backend %q", c.Backend)
	}
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("RA_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "ra_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.HTTP.SetDefaults()
	cfg.Auth.SetDefaults()
	cfg.Dispatch.SetDefaults()
	cfg.Logging.SetDefaults()
	cfg.Disputes.SetDefaults()
	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Dispatch.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Disputes.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
