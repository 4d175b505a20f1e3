package smartcharging

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/smartcharge/core/model"
)

type delta struct {
	period model.Period
	value  float64
}

// AggregateConnectors folds the merged Tx sequences of several connectors
// into one station-level sequence.
//
// Each sequence is turned into deltas against connectorCeiling (unlimited
// counts as the ceiling). Deltas starting at the same second are summed and
// applied to a running total that starts at stationCeiling and is clamped to
// [0, stationCeiling]. A total at the ceiling is reported as unlimited.
func AggregateConnectors(sequences [][]model.Period, connectorCeiling, stationCeiling float64) []model.Period {
	var deltas []delta
	for _, seq := range sequences {
		deltas = append(deltas, toDeltas(seq, connectorCeiling)...)
	}
	sort.SliceStable(deltas, func(i, j int) bool { return deltas[i].period.TS < deltas[j].period.TS })

	var out []model.Period
	total := stationCeiling
	for i := 0; i < len(deltas); {
		first := deltas[i].period
		var group []float64
		for ; i < len(deltas) && deltas[i].period.TS == first.TS; i++ {
			group = append(group, deltas[i].value)
		}
		total = math.Max(0, math.Min(total+floats.Sum(group), stationCeiling))

		p := first
		p.Purpose = model.PurposeTx
		p.Limit = model.Bounded(total)
		if total >= stationCeiling {
			p.Limit = model.Unlimited
		}
		out = append(out, p)
	}
	return out
}

func toDeltas(seq []model.Period, ceiling float64) []delta {
	out := make([]delta, 0, len(seq))
	prev := ceiling
	for _, p := range seq {
		cur := p.Limit.Or(ceiling)
		out = append(out, delta{period: p, value: cur - prev})
		prev = cur
	}
	return out
}
