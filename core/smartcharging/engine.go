package smartcharging

import (
	"sort"

	"github.com/kilianp07/smartcharge/core/clock"
	"github.com/kilianp07/smartcharge/core/logger"
	"github.com/kilianp07/smartcharge/core/model"
)

// DefaultConnectorCeiling is the per-connector maximum used for the station
// aggregation when none is configured.
const DefaultConnectorCeiling = 30

// Engine computes composite schedules. It holds no profile state; every
// query receives the full ProfileSet.
type Engine struct {
	clock            clock.Clock
	connectorCeiling float64
	scan             ScanMode
	log              logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithConnectorCeiling sets the per-connector maximum used as the delta
// baseline when aggregating connectors for the station view.
func WithConnectorCeiling(v float64) Option {
	return func(e *Engine) { e.connectorCeiling = v }
}

// WithScanMode selects the limit query behaviour.
func WithScanMode(m ScanMode) Option {
	return func(e *Engine) { e.scan = m }
}

// WithLogger enables debug traces of the intermediate stages.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine creates an Engine reading the current time from c.
func NewEngine(c clock.Clock, opts ...Option) *Engine {
	if c == nil {
		c = clock.System{}
	}
	e := &Engine{clock: c, connectorCeiling: DefaultConnectorCeiling, log: logger.Nop{}}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Clock returns the engine's time source.
func (e *Engine) Clock() clock.Clock { return e.clock }

// ScanMode returns the limit query behaviour of the engine.
func (e *Engine) ScanMode() ScanMode { return e.scan }

// CompositeSchedule computes the schedule for connectorID (0 for the whole
// station) at the current time.
func (e *Engine) CompositeSchedule(connectorID int, set model.ProfileSet, ceiling float64) (model.CompositeSchedule, error) {
	return e.CompositeScheduleAt(e.clock.Now(), connectorID, set, ceiling)
}

// CompositeScheduleAt computes the schedule for connectorID as seen at now.
func (e *Engine) CompositeScheduleAt(now clock.Instant, connectorID int, set model.ProfileSet, ceiling float64) (model.CompositeSchedule, error) {
	if err := e.check(connectorID, ceiling); err != nil {
		return nil, err
	}
	stationMax := FilterValid(set.StationMax, now.Time)
	txDefault := FilterValid(set.TxDefault, now.Time)
	txOverride := FilterValid(set.TxOverride, now.Time)

	stackedMax := Stack(ExtractPeriods(stationMax, now))

	var tx []model.Period
	if connectorID == 0 {
		ids := txConnectorIDs(txDefault, txOverride)
		seqs := make([][]model.Period, 0, len(ids))
		for _, id := range ids {
			seqs = append(seqs, connectorTx(id, txDefault, txOverride, now))
		}
		tx = AggregateConnectors(seqs, e.connectorCeiling, ceiling)
		e.log.Debugw("aggregated connectors", map[string]any{"connectors": ids, "periods": len(tx)})
	} else {
		tx = connectorTx(connectorID, txDefault, txOverride, now)
	}

	schedule := Combine(stackedMax, tx, ceiling)
	e.log.Debugw("composite schedule", map[string]any{
		"connector_id":       connectorID,
		"now":                now.SecondsFromMidnight,
		"station_max_active": len(stationMax),
		"tx_default_active":  len(txDefault),
		"tx_override_active": len(txOverride),
		"entries":            len(schedule),
	})
	return schedule, nil
}

// LimitNow returns the limit in force for connectorID at the current time.
func (e *Engine) LimitNow(connectorID int, set model.ProfileSet, ceiling float64) (model.Limit, bool, error) {
	return e.LimitAt(e.clock.Now(), connectorID, set, ceiling)
}

// LimitAt returns the limit in force for connectorID at now. The boolean is
// false when no constraint is known.
func (e *Engine) LimitAt(now clock.Instant, connectorID int, set model.ProfileSet, ceiling float64) (model.Limit, bool, error) {
	s, err := e.CompositeScheduleAt(now, connectorID, set, ceiling)
	if err != nil {
		return model.Unlimited, false, err
	}
	l, ok := CurrentLimit(s, now.SecondsFromMidnight, e.scan)
	return l, ok, nil
}

func (e *Engine) check(connectorID int, ceiling float64) error {
	if connectorID < 0 {
		return ErrInvalidConnector
	}
	if err := CheckCeiling("ceiling", ceiling); err != nil {
		return err
	}
	return CheckCeiling("connector_ceiling", e.connectorCeiling)
}

// connectorTx stacks and merges the Tx profiles that apply to connectorID.
// TxDefaultProfiles on connector 0 apply to every connector.
func connectorTx(connectorID int, defaults, overrides []model.ChargingProfile, now clock.Instant) []model.Period {
	def := Stack(ExtractPeriods(forConnector(defaults, connectorID, true), now))
	over := Stack(ExtractPeriods(forConnector(overrides, connectorID, false), now))
	return MergeTx(def, over)
}

// txConnectorIDs lists, in ascending order, the physical connectors that
// carry Tx profiles.
func txConnectorIDs(groups ...[]model.ChargingProfile) []int {
	seen := map[int]bool{}
	var ids []int
	for _, g := range groups {
		for _, p := range g {
			if p.ConnectorID > 0 && !seen[p.ConnectorID] {
				seen[p.ConnectorID] = true
				ids = append(ids, p.ConnectorID)
			}
		}
	}
	sort.Ints(ids)
	return ids
}
