// Package ocpp converts OCPP 1.6 smart charging messages to and from the
// charging profile model.
package ocpp

import (
	"encoding/json"
	"fmt"

	"github.com/lorenzodonini/ocpp-go/ocpp1.6/smartcharging"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"

	"github.com/kilianp07/smartcharge/core/model"
)

// Response statuses used on the wire.
const (
	StatusAccepted = "Accepted"
	StatusRejected = "Rejected"
	StatusUnknown  = "Unknown"
)

// ProfileFromOCPP converts the profile of a SetChargingProfile request
// addressed to connectorID.
func ProfileFromOCPP(connectorID int, p *types.ChargingProfile) (model.ChargingProfile, error) {
	if p == nil {
		return model.ChargingProfile{}, &model.ValidationError{Field: "csChargingProfiles", Reason: "missing"}
	}
	if p.ChargingSchedule == nil {
		return model.ChargingProfile{}, &model.ValidationError{Field: "chargingSchedule", Reason: "missing"}
	}
	purpose, err := model.ParsePurpose(string(p.ChargingProfilePurpose))
	if err != nil {
		return model.ChargingProfile{}, &model.ValidationError{Field: "chargingProfilePurpose", Reason: err.Error()}
	}
	kind, err := model.ParseKind(string(p.ChargingProfileKind))
	if err != nil {
		return model.ChargingProfile{}, &model.ValidationError{Field: "chargingProfileKind", Reason: err.Error()}
	}

	out := model.ChargingProfile{
		ConnectorID: connectorID,
		ProfileID:   p.ChargingProfileId,
		StackLevel:  p.StackLevel,
		Purpose:     purpose,
		Kind:        kind,
	}
	if p.ValidFrom != nil {
		out.ValidFrom = p.ValidFrom.Time
	}
	if p.ValidTo != nil {
		out.ValidTo = p.ValidTo.Time
	}
	s := p.ChargingSchedule
	if s.Duration != nil {
		out.Schedule.Duration = *s.Duration
	}
	if s.StartSchedule != nil {
		out.Schedule.StartSchedule = s.StartSchedule.Time
	}
	for _, sp := range s.ChargingSchedulePeriod {
		period := model.SchedulePeriod{StartPeriod: sp.StartPeriod, Limit: model.LimitFromWire(sp.Limit)}
		if sp.NumberPhases != nil {
			period.NumberPhases = *sp.NumberPhases
		}
		out.Schedule.Periods = append(out.Schedule.Periods, period)
	}
	return out, nil
}

// ProfileToOCPP builds the SetChargingProfile request carrying p. Limits
// are expressed in amperes.
func ProfileToOCPP(p model.ChargingProfile) *smartcharging.SetChargingProfileRequest {
	sched := &types.ChargingSchedule{ChargingRateUnit: types.ChargingRateUnitAmperes}
	if p.Schedule.Duration > 0 {
		d := p.Schedule.Duration
		sched.Duration = &d
	}
	if !p.Schedule.StartSchedule.IsZero() {
		sched.StartSchedule = &types.DateTime{Time: p.Schedule.StartSchedule}
	}
	for _, sp := range p.Schedule.Periods {
		period := types.ChargingSchedulePeriod{StartPeriod: sp.StartPeriod, Limit: sp.Limit.Wire()}
		if sp.NumberPhases > 0 {
			n := sp.NumberPhases
			period.NumberPhases = &n
		}
		sched.ChargingSchedulePeriod = append(sched.ChargingSchedulePeriod, period)
	}
	cp := &types.ChargingProfile{
		ChargingProfileId:      p.ProfileID,
		StackLevel:             p.StackLevel,
		ChargingProfilePurpose: types.ChargingProfilePurposeType(p.Purpose.String()),
		ChargingProfileKind:    types.ChargingProfileKindType(p.Kind.String()),
		ChargingSchedule:       sched,
	}
	if !p.ValidFrom.IsZero() {
		cp.ValidFrom = &types.DateTime{Time: p.ValidFrom}
	}
	if !p.ValidTo.IsZero() {
		cp.ValidTo = &types.DateTime{Time: p.ValidTo}
	}
	return &smartcharging.SetChargingProfileRequest{ConnectorId: p.ConnectorID, ChargingProfile: cp}
}

// DecodeSetChargingProfile parses a SetChargingProfile request payload.
func DecodeSetChargingProfile(data []byte) (model.ChargingProfile, error) {
	var req smartcharging.SetChargingProfileRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return model.ChargingProfile{}, fmt.Errorf("decode SetChargingProfile: %w", err)
	}
	return ProfileFromOCPP(req.ConnectorId, req.ChargingProfile)
}

// ClearRequest selects the profile a ClearChargingProfile request targets.
// A nil ConnectorID means the profile id is looked up on every connector.
type ClearRequest struct {
	ProfileID   int
	ConnectorID *int
}

// DecodeClearChargingProfile parses a ClearChargingProfile request payload.
// Only requests naming a profile id are supported.
func DecodeClearChargingProfile(data []byte) (ClearRequest, error) {
	var req smartcharging.ClearChargingProfileRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return ClearRequest{}, fmt.Errorf("decode ClearChargingProfile: %w", err)
	}
	if req.Id == nil {
		return ClearRequest{}, &model.ValidationError{Field: "id", Reason: "clearing by purpose or stack level is not supported"}
	}
	return ClearRequest{ProfileID: *req.Id, ConnectorID: req.ConnectorId}, nil
}
