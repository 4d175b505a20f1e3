package metrics

import (
	"context"

	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/registry"
	"github.com/kilianp07/smartcharge/infra/logger"
)

// EventSource delivers registry events.
type EventSource interface {
	Subscribe() <-chan registry.Event
	Unsubscribe(<-chan registry.Event)
}

// StartEventCollector subscribes to the registry and records a profile
// change for every event. It stops when the context is canceled or the
// source is closed.
func StartEventCollector(ctx context.Context, src EventSource, sink coremetrics.MetricsSink, chargePointID string) {
	if src == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.ProfileRecorder)
	if !ok {
		return
	}
	log := logger.New("metrics-collector")
	sub := src.Subscribe()
	go func() {
		defer src.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				err := rec.RecordProfileChange(coremetrics.ProfileEvent{
					ChargePointID: chargePointID,
					Kind:          ev.Kind.String(),
					Purpose:       ev.Purpose,
					ConnectorID:   ev.ConnectorID,
					ProfileID:     ev.ProfileID,
					StackLevel:    ev.StackLevel,
					Time:          ev.Time,
				})
				if err != nil {
					log.Warnf("record profile change: %v", err)
				}
			}
		}
	}()
}
