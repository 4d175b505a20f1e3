// Package plugins builds the schedule journal selected by configuration.
package plugins

import (
	"fmt"
	"sort"

	"github.com/kilianp07/smartcharge/config"
	"github.com/kilianp07/smartcharge/core/schedulelog"
)

// JournalFactory builds a schedule journal from the logging configuration.
type JournalFactory func(cfg config.LoggingConfig) (schedulelog.Store, error)

var Journals = map[string]JournalFactory{}

func RegisterJournal(name string, f JournalFactory) { Journals[name] = f }

func init() {
	RegisterJournal("jsonl", func(cfg config.LoggingConfig) (schedulelog.Store, error) {
		if cfg.MaxSizeMB > 0 {
			return schedulelog.NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
		}
		return schedulelog.NewJSONLStore(cfg.Path)
	})
	RegisterJournal("sqlite", func(cfg config.LoggingConfig) (schedulelog.Store, error) {
		return schedulelog.NewSQLiteStore(cfg.Path)
	})
	RegisterJournal("none", func(config.LoggingConfig) (schedulelog.Store, error) {
		return schedulelog.NopStore{}, nil
	})
}

// NewJournal builds the journal named by cfg.Backend.
func NewJournal(cfg config.LoggingConfig) (schedulelog.Store, error) {
	f, ok := Journals[cfg.Backend]
	if !ok {
		names := make([]string, 0, len(Journals))
		for n := range Journals {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown journal backend %q (known: %v)", cfg.Backend, names)
	}
	return f(cfg)
}
