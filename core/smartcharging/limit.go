package smartcharging

import (
	"fmt"

	"github.com/kilianp07/smartcharge/core/model"
)

// ScanMode selects how CurrentLimit picks the entry in force.
type ScanMode int

const (
	// ScanLatestStarted returns the most recently started entry.
	ScanLatestStarted ScanMode = iota
	// ScanFirstMatch scans from the earliest entry and returns the first one
	// that has started. With more than one started entry this is the opening
	// entry, not the current one.
	ScanFirstMatch
)

func (m ScanMode) String() string {
	switch m {
	case ScanFirstMatch:
		return "first_match"
	default:
		return "latest"
	}
}

// ParseScanMode maps a configuration value to a ScanMode. The empty string
// selects ScanLatestStarted.
func ParseScanMode(s string) (ScanMode, error) {
	switch s {
	case "", "latest":
		return ScanLatestStarted, nil
	case "first_match":
		return ScanFirstMatch, nil
	default:
		return 0, fmt.Errorf("unknown limit scan mode %q", s)
	}
}

// CurrentLimit returns the limit in force at second now of the day. The
// boolean is false when the schedule is empty or no entry has started yet.
func CurrentLimit(s model.CompositeSchedule, now int, mode ScanMode) (model.Limit, bool) {
	if mode == ScanFirstMatch {
		for _, e := range s {
			if now >= e.TS {
				return e.Limit, true
			}
		}
		return model.Unlimited, false
	}
	for i := len(s) - 1; i >= 0; i-- {
		if now >= s[i].TS {
			return s[i].Limit, true
		}
	}
	return model.Unlimited, false
}
