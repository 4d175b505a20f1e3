// Package clock supplies the current time to the schedule engine. The engine
// never reads the wall clock itself; callers read one Instant per query and
// thread it through.
package clock

import "time"

// Instant is a wall-clock reading together with the number of seconds since
// midnight in the reading's location.
type Instant struct {
	Time                time.Time
	SecondsFromMidnight int
}

// At builds the Instant for t.
func At(t time.Time) Instant {
	return Instant{Time: t, SecondsFromMidnight: SecondsOfDay(t)}
}

// SecondsOfDay returns hour*3600 + minute*60 + second of t in t's location.
func SecondsOfDay(t time.Time) int {
	h, m, s := t.Clock()
	return h*3600 + m*60 + s
}

// EndOfDay returns the last representable instant of t's day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 23, 59, 59, int(time.Second-time.Nanosecond), loc)
}

// Clock is the time port consumed by the engine.
type Clock interface {
	Now() Instant
}

// System reads the wall clock in Location (time.Local when nil).
type System struct {
	Location *time.Location
}

func (c System) Now() Instant {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return At(time.Now().In(loc))
}

// Fixed always returns the same instant. It is used by tests and by offline
// computations for a given moment.
type Fixed struct {
	T time.Time
}

func (c Fixed) Now() Instant { return At(c.T) }

// Func adapts a function to the Clock interface.
type Func func() time.Time

func (f Func) Now() Instant { return At(f()) }
