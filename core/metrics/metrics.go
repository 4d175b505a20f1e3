package metrics

import (
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// ScheduleEvent describes one composite schedule computation.
type ScheduleEvent struct {
	ChargePointID string
	ConnectorID   int
	Ceiling       float64
	Trigger       string
	Segments      int
	Limit         model.Limit
	HasLimit      bool
	Duration      time.Duration
	Time          time.Time
}

// MetricsSink records schedule computations for observability purposes.
type MetricsSink interface {
	RecordSchedule(ev ScheduleEvent) error
}

// ProfileEvent captures a change of the installed charging profiles.
type ProfileEvent struct {
	ChargePointID string
	Kind          string
	Purpose       model.Purpose
	ConnectorID   int
	ProfileID     int
	StackLevel    int
	Time          time.Time
}

// ProfileRecorder records profile changes.
type ProfileRecorder interface {
	RecordProfileChange(ev ProfileEvent) error
}

// RequestEvent captures the outcome of a SetChargingProfile or
// ClearChargingProfile request.
type RequestEvent struct {
	Action string
	Status string
	Time   time.Time
}

// RequestRecorder records protocol request outcomes.
type RequestRecorder interface {
	RecordRequest(ev RequestEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordSchedule(ScheduleEvent) error     { return nil }
func (NopSink) RecordProfileChange(ProfileEvent) error { return nil }
func (NopSink) RecordRequest(RequestEvent) error       { return nil }

// MultiSink fans events out to several sinks. Optional recorders are only
// called on sinks implementing them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSchedule forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordSchedule(ev ScheduleEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordSchedule(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordProfileChange forwards profile changes.
func (m *MultiSink) RecordProfileChange(ev ProfileEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ProfileRecorder); ok {
			if err := rec.RecordProfileChange(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordRequest forwards request outcomes.
func (m *MultiSink) RecordRequest(ev RequestEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(RequestRecorder); ok {
			if err := rec.RecordRequest(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
