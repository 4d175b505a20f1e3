package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/smartcharge/core/model"
)

// loadProfiles reads a JSON or YAML list of charging profiles in wire shape.
func loadProfiles(path string) ([]model.ChargingProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		// YAML goes through the JSON decoders of the model types.
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if data, err = json.Marshal(raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json":
	default:
		return nil, fmt.Errorf("unsupported profile file format: %s", filepath.Ext(path))
	}
	var profiles []model.ChargingProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return profiles, nil
}
