package smartcharging

import (
	"sort"
	"time"

	"github.com/kilianp07/smartcharge/core/clock"
	"github.com/kilianp07/smartcharge/core/model"
)

// ExtractPeriods converts profiles into limit-change periods, each profile
// contributing its schedule periods followed by one unlimited terminator.
// The pooled result is sorted by TS; ties keep profile order.
func ExtractPeriods(profiles []model.ChargingProfile, now clock.Instant) []model.Period {
	var periods []model.Period
	for _, p := range profiles {
		periods = append(periods, profilePeriods(p, now)...)
	}
	sort.SliceStable(periods, func(i, j int) bool { return periods[i].TS < periods[j].TS })
	return periods
}

func profilePeriods(p model.ChargingProfile, now clock.Instant) []model.Period {
	sched := append([]model.SchedulePeriod(nil), p.Schedule.Periods...)
	sort.SliceStable(sched, func(i, j int) bool { return sched[i].StartPeriod < sched[j].StartPeriod })

	anchor := anchorOf(p, now)
	out := make([]model.Period, 0, len(sched)+1)
	for _, sp := range sched {
		ts := anchor + sp.StartPeriod
		if ts > model.LastSecondOfDay {
			continue
		}
		out = append(out, model.Period{
			TS:           ts,
			StackLevel:   p.StackLevel,
			Purpose:      p.Purpose,
			NumberPhases: sp.NumberPhases,
			Limit:        sp.Limit,
		})
	}

	phases := 0
	if len(sched) > 0 {
		phases = sched[0].NumberPhases
	}
	return append(out, model.Period{
		TS:           endOf(p, anchor, now),
		StackLevel:   p.StackLevel,
		Purpose:      p.Purpose,
		NumberPhases: phases,
		Limit:        model.Unlimited,
	})
}

// anchorOf returns the second of the day the profile's offsets count from.
func anchorOf(p model.ChargingProfile, now clock.Instant) int {
	if p.Kind == model.KindRelative {
		return now.SecondsFromMidnight
	}
	return hourMinute(p.Schedule.StartSchedule.In(now.Time.Location()))
}

// endOf returns the second of the day at which the profile stops applying.
func endOf(p model.ChargingProfile, anchor int, now clock.Instant) int {
	if d := p.Schedule.Duration; d > 0 {
		return min(anchor+d, model.LastSecondOfDay)
	}
	loc := now.Time.Location()
	if p.ValidTo.IsZero() || !p.ValidTo.Before(clock.EndOfDay(now.Time, loc)) {
		return model.LastSecondOfDay
	}
	return hourMinute(p.ValidTo.In(loc))
}

func hourMinute(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60
}
