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

	"github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/infra/monitoring"
	"github.com/kilianp07/smartcharge/infra/mqtt"
)

// EnvPrefix marks environment variables overriding file values. Nested keys
// are separated by a double underscore, e.g. K_CHARGE_POINT__ID.
const EnvPrefix = "K_"

type Config struct {
	ChargePoint ChargePointConfig `json:"charge_point"`
	Registry    RegistryConfig    `json:"registry"`
	Logging     LoggingConfig     `json:"logging"`
	Metrics     metrics.Config    `json:"metrics"`
	MQTT        mqtt.Config       `json:"mqtt"`
	API         APIConfig         `json:"api"`
	Sentry      monitoring.Config `json:"sentry"`
}

// Load reads the YAML or JSON file at path, applies environment overrides,
// fills defaults and validates the result.
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
	if err := k.Load(env.Provider(EnvPrefix, "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.ChargePoint.SetDefaults()
	c.Registry.SetDefaults()
	c.Logging.SetDefaults()
	c.API.SetDefaults()
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "smartcharge-" + c.ChargePoint.ID
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = mqtt.DefaultTopicPrefix
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.ChargePoint.Validate(); err != nil {
		return fmt.Errorf("charge_point: %w", err)
	}
	if err := c.Registry.Validate(); err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}
