package smartcharging

import (
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// FilterValid keeps the profiles whose validity window contains t. The input
// is never modified.
func FilterValid(profiles []model.ChargingProfile, t time.Time) []model.ChargingProfile {
	out := make([]model.ChargingProfile, 0, len(profiles))
	for _, p := range profiles {
		if p.ActiveAt(t) {
			out = append(out, p)
		}
	}
	return out
}

// forConnector selects the profiles addressed to connectorID. When
// includeStation is set, connector 0 profiles (which apply to every
// connector) are kept as well.
func forConnector(profiles []model.ChargingProfile, connectorID int, includeStation bool) []model.ChargingProfile {
	var out []model.ChargingProfile
	for _, p := range profiles {
		if p.ConnectorID == connectorID || (includeStation && p.ConnectorID == 0) {
			out = append(out, p)
		}
	}
	return out
}
