package smartcharging

import (
	"sort"

	"github.com/kilianp07/smartcharge/core/model"
)

// MergeTx combines stacked TxDefaultProfile and TxProfile periods of one
// connector. While an override is bounded it wins; otherwise the default
// applies. Every output period is tagged PurposeTx.
func MergeTx(defaults, overrides []model.Period) []model.Period {
	pooled := make([]model.Period, 0, len(defaults)+len(overrides))
	pooled = append(pooled, defaults...)
	pooled = append(pooled, overrides...)
	sort.SliceStable(pooled, func(i, j int) bool { return pooled[i].TS < pooled[j].TS })

	limitDefault, limitOverride := model.Unlimited, model.Unlimited
	out := make([]model.Period, 0, len(pooled))
	for _, p := range pooled {
		switch p.Purpose {
		case model.PurposeTxDefault:
			limitDefault = p.Limit
		case model.PurposeTxOverride:
			limitOverride = p.Limit
		}
		p.Limit = limitDefault
		if !limitOverride.IsUnlimited() {
			p.Limit = limitOverride
		}
		p.Purpose = model.PurposeTx
		out = append(out, p)
	}
	return out
}
