// Package profilestore provides persistent backends for the charging
// profile registry.
package profilestore

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kilianp07/smartcharge/core/factory"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/registry"
)

var stores = factory.NewRegistry[registry.Store]()

func init() {
	_ = stores.Register("memory", func(map[string]any) (registry.Store, error) {
		return registry.NewMemoryStore(), nil
	})
	_ = stores.Register("sqlite", func(conf map[string]any) (registry.Store, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSQLiteStore(c)
	})
	_ = stores.Register("postgres", func(conf map[string]any) (registry.Store, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewPostgresStore(c)
	})
}

// Config configures the SQL backed stores.
type Config struct {
	DSN           string `json:"dsn"`
	ChargePointID string `json:"charge_point_id"`
	MaxConns      int32  `json:"max_conns"`
}

// New builds the store described by cfg. An empty type selects the
// in-memory store.
func New(cfg factory.ModuleConfig) (registry.Store, error) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	return stores.Create(cfg)
}

// Close releases the resources held by s, if any.
func Close(s registry.Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func checkBucket(purpose model.Purpose) error {
	if !purpose.Submittable() {
		return model.ErrUnknownPurpose
	}
	return nil
}

func encode(p model.ChargingProfile) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode profile %d: %w", p.ProfileID, err)
	}
	return b, nil
}

func decodeInto(set *model.ProfileSet, purpose string, data []byte) error {
	pp, err := model.ParsePurpose(purpose)
	if err != nil {
		return err
	}
	var p model.ChargingProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode profile: %w", err)
	}
	set.SetProfiles(pp, append(set.Profiles(pp), p))
	return nil
}
