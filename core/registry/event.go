package registry

import (
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// EventKind describes a registry change.
type EventKind int

const (
	Added EventKind = iota + 1
	Replaced
	Removed
)

func (k EventKind) String() string {
	switch k {
	case Added:
		return "added"
	case Replaced:
		return "replaced"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is published after every successful change.
type Event struct {
	Kind        EventKind
	Purpose     model.Purpose
	ConnectorID int
	ProfileID   int
	StackLevel  int
	Time        time.Time
}

func eventFor(kind EventKind, p model.ChargingProfile, at time.Time) Event {
	return Event{
		Kind:        kind,
		Purpose:     p.Purpose,
		ConnectorID: p.ConnectorID,
		ProfileID:   p.ProfileID,
		StackLevel:  p.StackLevel,
		Time:        at,
	}
}
