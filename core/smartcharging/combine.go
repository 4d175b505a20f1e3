package smartcharging

import (
	"math"
	"sort"

	"github.com/kilianp07/smartcharge/core/model"
)

// Combine merges the stacked ChargePointMaxProfile periods with the Tx
// periods (per connector or aggregated) into the composite schedule.
//
// Both trackers start at the ceiling and an unlimited period resets its
// tracker to the ceiling. Each entry is the minimum of the two trackers,
// except the first, which keeps the limit of the period that opened the day
// (clamped to the ceiling). Periods sharing a second yield one entry holding
// the state after all of them. Entries at the last second of the day only
// mark profiles running through the day and are left out. Consecutive
// entries with equal limits are collapsed.
func Combine(stationMax, tx []model.Period, ceiling float64) model.CompositeSchedule {
	pooled := make([]model.Period, 0, len(stationMax)+len(tx))
	pooled = append(pooled, stationMax...)
	pooled = append(pooled, tx...)
	sort.SliceStable(pooled, func(i, j int) bool { return pooled[i].TS < pooled[j].TS })

	limitMax, limitTx := ceiling, ceiling
	combined := make([]model.ScheduleEntry, 0, len(pooled))
	for i, p := range pooled {
		v := math.Min(p.Limit.Or(ceiling), ceiling)
		if p.Purpose == model.PurposeStationMax {
			limitMax = v
		} else {
			limitTx = v
		}
		if p.TS >= model.LastSecondOfDay {
			continue
		}
		limit := model.Bounded(math.Min(limitMax, limitTx))
		if i == 0 {
			limit = openingLimit(p.Limit, ceiling)
		}
		entry := model.ScheduleEntry{TS: p.TS, Limit: limit}
		if n := len(combined); n > 0 && combined[n-1].TS == p.TS {
			combined[n-1] = entry
			continue
		}
		combined = append(combined, entry)
	}
	return dedupe(combined)
}

func openingLimit(l model.Limit, ceiling float64) model.Limit {
	v, ok := l.Value()
	if !ok {
		return model.Unlimited
	}
	return model.Bounded(math.Max(0, math.Min(v, ceiling)))
}

func dedupe(entries []model.ScheduleEntry) model.CompositeSchedule {
	out := make(model.CompositeSchedule, 0, len(entries))
	for _, e := range entries {
		if len(out) > 0 && out[len(out)-1].Limit == e.Limit {
			continue
		}
		out = append(out, e)
	}
	return out
}
