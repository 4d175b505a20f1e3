package mqtt

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/smartcharge/core/model"
)

// ScheduleUpdate is the retained message describing the composite schedule
// a connector must enforce.
type ScheduleUpdate struct {
	MessageID     string                  `json:"messageId"`
	ChargePointID string                  `json:"chargePointId"`
	ConnectorID   int                     `json:"connectorId"`
	Ceiling       float64                 `json:"ceiling"`
	Schedule      model.CompositeSchedule `json:"schedule"`
	Limit         *model.Limit            `json:"limit,omitempty"`
	ComputedAt    time.Time               `json:"computedAt"`
}

// Publisher delivers schedule updates to the enforcement side.
type Publisher interface {
	PublishSchedule(ctx context.Context, u ScheduleUpdate) error
}

// NopPublisher drops every update.
type NopPublisher struct{}

func (NopPublisher) PublishSchedule(context.Context, ScheduleUpdate) error { return nil }

// Topic layout shared by the client and its peers.
const (
	SetChargingProfileTopic   = "set_charging_profile"
	ClearChargingProfileTopic = "clear_charging_profile"
	ResponseSuffix            = "/response"
)

// ScheduleTopic returns the topic carrying the schedule of one connector.
func ScheduleTopic(prefix, chargePointID string, connectorID int) string {
	return fmt.Sprintf("%s/%s/connector/%d/schedule", prefix, chargePointID, connectorID)
}

// RequestTopic returns the topic a request action is received on.
func RequestTopic(prefix, chargePointID, action string) string {
	return fmt.Sprintf("%s/%s/%s", prefix, chargePointID, action)
}
