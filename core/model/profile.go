package model

import "time"

// ChargingProfile is a constraint request as delivered by a SetChargingProfile
// request. ConnectorID 0 addresses the whole charge point.
type ChargingProfile struct {
	ConnectorID int              `json:"connectorId"`
	ProfileID   int              `json:"chargingProfileId"`
	StackLevel  int              `json:"stackLevel"`
	Purpose     Purpose          `json:"chargingProfilePurpose"`
	Kind        Kind             `json:"chargingProfileKind"`
	ValidFrom   time.Time        `json:"validFrom"`
	ValidTo     time.Time        `json:"validTo"`
	Schedule    ChargingSchedule `json:"chargingSchedule"`
}

// ChargingSchedule holds the limit periods of a profile.
type ChargingSchedule struct {
	// Duration in seconds; 0 means until validTo or the end of the day.
	Duration      int              `json:"duration"`
	StartSchedule time.Time        `json:"startSchedule"`
	Periods       []SchedulePeriod `json:"chargingSchedulePeriod"`
}

// SchedulePeriod is one limit starting StartPeriod seconds after the anchor.
type SchedulePeriod struct {
	StartPeriod  int   `json:"startPeriod"`
	Limit        Limit `json:"limit"`
	NumberPhases int   `json:"numberPhases"`
}

// Key is the uniqueness key of a profile inside a ProfileSet.
type Key struct {
	ConnectorID int
	StackLevel  int
	Purpose     Purpose
}

// Key returns the (connector, stack level, purpose) triple of p.
func (p ChargingProfile) Key() Key {
	return Key{ConnectorID: p.ConnectorID, StackLevel: p.StackLevel, Purpose: p.Purpose}
}

// ActiveAt reports whether t lies inside the validity window. Zero bounds
// are open.
func (p ChargingProfile) ActiveAt(t time.Time) bool {
	if !p.ValidFrom.IsZero() && t.Before(p.ValidFrom) {
		return false
	}
	if !p.ValidTo.IsZero() && t.After(p.ValidTo) {
		return false
	}
	return true
}

// ProfileSet groups installed profiles by purpose.
type ProfileSet struct {
	StationMax []ChargingProfile `json:"ChargePointMaxProfile"`
	TxDefault  []ChargingProfile `json:"TxDefaultProfile"`
	TxOverride []ChargingProfile `json:"TxProfile"`
}

// Profiles returns the bucket holding profiles of purpose p.
func (s ProfileSet) Profiles(p Purpose) []ChargingProfile {
	switch p {
	case PurposeStationMax:
		return s.StationMax
	case PurposeTxDefault:
		return s.TxDefault
	case PurposeTxOverride:
		return s.TxOverride
	default:
		return nil
	}
}

// SetProfiles replaces the bucket of purpose p.
func (s *ProfileSet) SetProfiles(p Purpose, profiles []ChargingProfile) {
	switch p {
	case PurposeStationMax:
		s.StationMax = profiles
	case PurposeTxDefault:
		s.TxDefault = profiles
	case PurposeTxOverride:
		s.TxOverride = profiles
	}
}

// Len returns the number of profiles across all purposes.
func (s ProfileSet) Len() int {
	return len(s.StationMax) + len(s.TxDefault) + len(s.TxOverride)
}

// Clone returns a deep copy of the set's buckets.
func (s ProfileSet) Clone() ProfileSet {
	var out ProfileSet
	for _, p := range Purposes {
		out.SetProfiles(p, CloneProfiles(s.Profiles(p)))
	}
	return out
}

// CloneProfiles copies profiles including their schedule periods.
func CloneProfiles(in []ChargingProfile) []ChargingProfile {
	if in == nil {
		return nil
	}
	out := make([]ChargingProfile, len(in))
	for i, p := range in {
		p.Schedule.Periods = append([]SchedulePeriod(nil), p.Schedule.Periods...)
		out[i] = p
	}
	return out
}
