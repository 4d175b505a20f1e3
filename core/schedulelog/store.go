package schedulelog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/smartcharge/core/model"
)

// Record captures one composite schedule computation.
type Record struct {
	ID            string                  `json:"id"`
	Timestamp     time.Time               `json:"timestamp"`
	ChargePointID string                  `json:"charge_point_id"`
	ConnectorID   int                     `json:"connector_id"`
	Ceiling       float64                 `json:"ceiling"`
	Trigger       string                  `json:"trigger"`
	Schedule      model.CompositeSchedule `json:"schedule"`
	Limit         model.Limit             `json:"limit"`
	HasLimit      bool                    `json:"has_limit"`
}

// NewRecord returns a record with a fresh id.
func NewRecord(ts time.Time, chargePointID string, connectorID int) Record {
	return Record{ID: uuid.NewString(), Timestamp: ts, ChargePointID: chargePointID, ConnectorID: connectorID}
}

// Query defines filters for retrieving records. A nil ConnectorID matches
// every connector.
type Query struct {
	Start       time.Time
	End         time.Time
	ConnectorID *int
}

func (q Query) match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	return q.ConnectorID == nil || *q.ConnectorID == r.ConnectorID
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore drops every record.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
