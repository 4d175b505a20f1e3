package smartcharging

import "github.com/kilianp07/smartcharge/core/model"

// Stack resolves precedence between the ascending periods of one purpose.
// A lower stack level wins. Once a profile is active, periods of other
// levels are dropped until a higher-precedence profile starts or the active
// profile's terminator is reached.
func Stack(periods []model.Period) []model.Period {
	var (
		out       []model.Period
		active    int
		hasActive bool
	)
	for _, p := range periods {
		switch {
		case !hasActive:
			active, hasActive = p.StackLevel, true
			out = append(out, p)
		case p.StackLevel < active:
			active = p.StackLevel
			out = append(out, p)
		case p.StackLevel == active && p.Ends():
			hasActive = false
			out = append(out, p)
		}
	}
	return out
}
