package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

// LoggingConfig defines the log level and the schedule journal storage.
type LoggingConfig struct {
	// Level is the minimum zerolog level, "info" by default.
	Level string `json:"level"`
	// Backend selects the journal type: "jsonl", "sqlite" or "none".
	Backend string `json:"backend"`
	// Path is the file location of the journal.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation of a jsonl journal when the file exceeds
	// this size in megabytes. Zero disables rotation.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "schedule.log"
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("level: %w", err)
	}
	switch c.Backend {
	case "jsonl", "sqlite":
		if c.Path == "" {
			return fmt.Errorf("path is required")
		}
	case "none":
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	return nil
}
