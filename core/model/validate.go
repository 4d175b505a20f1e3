package model

import (
	"fmt"
	"math"
)

// ValidationError reports a malformed charging profile.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid charging profile: %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks that the profile is well formed before it reaches the
// schedule engine.
//
//gocyclo:ignore
func (p ChargingProfile) Validate() error {
	if p.ConnectorID < 0 {
		return invalid("connectorId", "must not be negative, got %d", p.ConnectorID)
	}
	if p.StackLevel < 0 {
		return invalid("stackLevel", "must not be negative, got %d", p.StackLevel)
	}
	if !p.Purpose.Submittable() {
		return invalid("chargingProfilePurpose", "unknown purpose")
	}
	if p.Kind == KindUnknown || p.Kind > KindRelative {
		return invalid("chargingProfileKind", "unknown kind")
	}
	if !p.ValidFrom.IsZero() && !p.ValidTo.IsZero() && p.ValidFrom.After(p.ValidTo) {
		return invalid("validFrom", "is after validTo")
	}
	s := p.Schedule
	if s.Duration < 0 {
		return invalid("chargingSchedule.duration", "must not be negative, got %d", s.Duration)
	}
	if p.Kind.Anchored() && s.StartSchedule.IsZero() {
		return invalid("chargingSchedule.startSchedule", "required for %s profiles", p.Kind)
	}
	if len(s.Periods) == 0 {
		return invalid("chargingSchedule.chargingSchedulePeriod", "at least one period is required")
	}
	prev := -1
	for i, sp := range s.Periods {
		field := fmt.Sprintf("chargingSchedule.chargingSchedulePeriod[%d]", i)
		if sp.StartPeriod < 0 {
			return invalid(field+".startPeriod", "must not be negative, got %d", sp.StartPeriod)
		}
		if sp.StartPeriod <= prev {
			return invalid(field+".startPeriod", "periods must be in strictly ascending order")
		}
		prev = sp.StartPeriod
		if v, ok := sp.Limit.Value(); ok {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return invalid(field+".limit", "must be a finite number")
			}
			if v < 0 {
				return invalid(field+".limit", "must be -1 or non-negative, got %v", v)
			}
		}
		if sp.NumberPhases < 0 {
			return invalid(field+".numberPhases", "must not be negative, got %d", sp.NumberPhases)
		}
	}
	return nil
}
