package model

// Seconds in a day and the last second the schedule covers.
const (
	SecondsPerDay   = 24 * 3600
	LastSecondOfDay = SecondsPerDay - 1
)

// Period is an atomic limit change derived from a profile. TS is the number
// of seconds since local midnight.
type Period struct {
	TS           int
	StackLevel   int
	Purpose      Purpose
	NumberPhases int
	Limit        Limit
}

// Ends reports whether p is the terminating period of its profile.
func (p Period) Ends() bool { return p.Limit.IsUnlimited() }

// ScheduleEntry is one step of a composite schedule: Limit holds from TS until
// the next entry.
type ScheduleEntry struct {
	TS    int   `json:"ts"`
	Limit Limit `json:"limit"`
}

// CompositeSchedule is an ascending, deduplicated, piecewise-constant limit
// curve over one day.
type CompositeSchedule []ScheduleEntry
