package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/smartcharge/core/smartcharging"
)

// ChargePointConfig describes the charge point the service computes
// schedules for.
type ChargePointConfig struct {
	ID string `json:"id"`
	// StationCeiling bounds connector 0, the aggregated station schedule.
	StationCeiling float64 `json:"station_ceiling"`
	// ConnectorCeiling bounds every physical connector.
	ConnectorCeiling float64 `json:"connector_ceiling"`
	// Connectors is the number of physical connectors, numbered from 1.
	Connectors int    `json:"connectors"`
	Timezone   string `json:"timezone"`
	// LimitScan selects the limit query behaviour: "latest" or "first_match".
	LimitScan string `json:"limit_scan"`
}

// SetDefaults applies sane defaults. The station ceiling defaults to the
// sum of the connector ceilings.
func (c *ChargePointConfig) SetDefaults() {
	if c.ID == "" {
		c.ID = "cp-1"
	}
	if c.Connectors == 0 {
		c.Connectors = 1
	}
	if c.ConnectorCeiling == 0 {
		c.ConnectorCeiling = smartcharging.DefaultConnectorCeiling
	}
	if c.StationCeiling == 0 {
		c.StationCeiling = c.ConnectorCeiling * float64(c.Connectors)
	}
	if c.LimitScan == "" {
		c.LimitScan = smartcharging.ScanLatestStarted.String()
	}
}

// Validate rejects unusable values. Ceilings are checked the way the
// engine checks them.
func (c ChargePointConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if c.Connectors < 0 {
		return fmt.Errorf("connectors must not be negative, got %d", c.Connectors)
	}
	if err := smartcharging.CheckCeiling("station_ceiling", c.StationCeiling); err != nil {
		return err
	}
	if err := smartcharging.CheckCeiling("connector_ceiling", c.ConnectorCeiling); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	_, err := smartcharging.ParseScanMode(c.LimitScan)
	return err
}

// Location returns the configured time zone, time.Local when unset.
func (c ChargePointConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}

// ScanMode returns the parsed limit_scan value.
func (c ChargePointConfig) ScanMode() smartcharging.ScanMode {
	m, _ := smartcharging.ParseScanMode(c.LimitScan)
	return m
}

// Ceiling returns the ceiling applying to connectorID.
func (c ChargePointConfig) Ceiling(connectorID int) float64 {
	if connectorID == 0 {
		return c.StationCeiling
	}
	return c.ConnectorCeiling
}

// ConnectorIDs lists the station id 0 followed by every physical connector.
func (c ChargePointConfig) ConnectorIDs() []int {
	ids := make([]int, 0, c.Connectors+1)
	for i := 0; i <= c.Connectors; i++ {
		ids = append(ids, i)
	}
	return ids
}
