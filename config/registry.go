package config

import (
	"fmt"

	"github.com/kilianp07/smartcharge/core/factory"
)

// RegistryConfig selects where installed charging profiles are kept.
type RegistryConfig struct {
	// Backend is "memory", "sqlite" or "postgres".
	Backend string `json:"backend"`
	// DSN is the SQLite file or PostgreSQL connection string.
	DSN      string `json:"dsn"`
	MaxConns int32  `json:"max_conns"`
}

func (c *RegistryConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
}

func (c RegistryConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "sqlite", "postgres":
		if c.DSN == "" {
			return fmt.Errorf("dsn is required for the %s backend", c.Backend)
		}
		return nil
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
}

// Module returns the store factory configuration for chargePointID.
func (c RegistryConfig) Module(chargePointID string) factory.ModuleConfig {
	return factory.ModuleConfig{Type: c.Backend, Conf: map[string]any{
		"dsn":             c.DSN,
		"charge_point_id": chargePointID,
		"max_conns":       c.MaxConns,
	}}
}
