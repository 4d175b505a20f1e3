package smartcharging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartcharge/core/clock"
	"github.com/kilianp07/smartcharge/core/model"
)

func period(ts, level int, purpose model.Purpose, limit float64) model.Period {
	return model.Period{TS: ts, StackLevel: level, Purpose: purpose, Limit: model.LimitFromWire(limit)}
}

func TestFilterValid(t *testing.T) {
	inWindow := allDay(1, 1, 0, model.PurposeTxDefault, sp(0, 10))
	future := inWindow
	future.ProfileID = 2
	future.ValidFrom = day.Add(48 * time.Hour)
	future.ValidTo = day.Add(72 * time.Hour)
	open := inWindow
	open.ProfileID = 3
	open.ValidFrom, open.ValidTo = time.Time{}, time.Time{}

	in := []model.ChargingProfile{inWindow, future, open}
	got := FilterValid(in, day.Add(time.Hour))
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].ProfileID)
	assert.Equal(t, 3, got[1].ProfileID)
	assert.Len(t, in, 3)

	assert.Len(t, FilterValid(in, day), 2, "validFrom is inclusive")
}

func TestExtractPeriods(t *testing.T) {
	p := allDay(1, 1, 2, model.PurposeTxDefault, sp(3600, 12), sp(0, 16))
	p.Schedule.StartSchedule = day.Add(8*time.Hour + 30*time.Minute + 45*time.Second)
	p.Schedule.Duration = 7200

	got := ExtractPeriods([]model.ChargingProfile{p}, at(0, 0))
	require.Len(t, got, 3)
	assert.Equal(t, 30600, got[0].TS)
	assert.Equal(t, model.Bounded(16), got[0].Limit)
	assert.Equal(t, 34200, got[1].TS)
	assert.Equal(t, 37800, got[2].TS)
	assert.True(t, got[2].Ends())
	assert.Equal(t, 3, got[2].NumberPhases)
	assert.Equal(t, 2, got[2].StackLevel)
	assert.Equal(t, model.PurposeTxDefault, got[2].Purpose)
}

func TestExtractPeriodsDayBounds(t *testing.T) {
	late := allDay(1, 1, 0, model.PurposeTxDefault, sp(0, 10), sp(7200, 8))
	late.Schedule.StartSchedule = day.Add(23 * time.Hour)
	late.Schedule.Duration = 10800

	got := ExtractPeriods([]model.ChargingProfile{late}, at(0, 0))
	require.Len(t, got, 2)
	assert.Equal(t, 82800, got[0].TS)
	assert.Equal(t, model.LastSecondOfDay, got[1].TS)
	assert.True(t, got[1].Ends())

	tomorrow := allDay(1, 2, 0, model.PurposeTxDefault, sp(0, 10))
	tomorrow.ValidTo = day.Add(30 * time.Hour)
	got = ExtractPeriods([]model.ChargingProfile{tomorrow}, at(0, 0))
	require.Len(t, got, 2)
	assert.Equal(t, model.LastSecondOfDay, got[1].TS)
}

func TestExtractPeriodsUsesClockLocation(t *testing.T) {
	paris := time.FixedZone("CET", 3600)
	p := allDay(1, 1, 0, model.PurposeTxDefault, sp(0, 10))
	p.Schedule.StartSchedule = time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	p.Schedule.Duration = 600

	now := clock.At(time.Date(2025, 3, 10, 9, 0, 0, 0, paris))
	got := ExtractPeriods([]model.ChargingProfile{p}, now)
	require.Len(t, got, 2)
	assert.Equal(t, 7*3600, got[0].TS)
}

func TestExtractPeriodsStableAcrossProfiles(t *testing.T) {
	a := allDay(1, 1, 0, model.PurposeTxDefault, sp(0, 10))
	b := allDay(1, 2, 1, model.PurposeTxDefault, sp(0, 20))
	got := ExtractPeriods([]model.ChargingProfile{a, b}, at(0, 0))
	require.Len(t, got, 4)
	assert.Equal(t, 1, got[1].StackLevel-got[0].StackLevel)
	assert.Equal(t, model.Bounded(10), got[0].Limit)
	assert.Equal(t, model.Bounded(20), got[1].Limit)
}

func TestStackPrecedence(t *testing.T) {
	tx := model.PurposeTxDefault
	in := []model.Period{
		period(0, 2, tx, 20),
		period(3600, 1, tx, 10),
		period(5400, 2, tx, 18),
		period(7200, 1, tx, -1),
		period(9000, 2, tx, -1),
		period(10000, 3, tx, 7),
	}
	got := Stack(in)
	require.Len(t, got, 4)
	assert.Equal(t, []int{0, 3600, 7200, 9000}, []int{got[0].TS, got[1].TS, got[2].TS, got[3].TS})
	assert.Equal(t, model.Bounded(10), got[1].Limit)
	assert.True(t, got[2].Ends())
	// the level 2 terminator is adopted once nothing is active, so the
	// level 3 period is still pre-empted
	assert.True(t, got[3].Ends())
	assert.Equal(t, 2, got[3].StackLevel)
}

func TestStackDropsPreemptedPeriods(t *testing.T) {
	tx := model.PurposeTxDefault
	got := Stack([]model.Period{
		period(0, 0, tx, 10),
		period(100, 1, tx, 5),
		period(200, 0, tx, 12),
		period(300, 1, tx, -1),
		period(400, 0, tx, -1),
	})
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].TS)
	assert.Equal(t, 400, got[1].TS)
}

func TestMergeTxOverrideWins(t *testing.T) {
	defaults := []model.Period{
		period(0, 0, model.PurposeTxDefault, 16),
		period(model.LastSecondOfDay, 0, model.PurposeTxDefault, -1),
	}
	overrides := []model.Period{
		period(3600, 0, model.PurposeTxOverride, 32),
		period(7200, 0, model.PurposeTxOverride, -1),
	}
	got := MergeTx(defaults, overrides)
	require.Len(t, got, 4)

	want := []model.Limit{model.Bounded(16), model.Bounded(32), model.Bounded(16), model.Unlimited}
	for i, p := range got {
		assert.Equal(t, model.PurposeTx, p.Purpose)
		assert.Equal(t, want[i], p.Limit, "period %d", i)
	}
}

func TestAggregateConnectorsAdditive(t *testing.T) {
	conn1 := []model.Period{
		period(0, 0, model.PurposeTx, 10),
		period(3600, 0, model.PurposeTx, 20),
		period(7200, 0, model.PurposeTx, -1),
	}
	conn2 := []model.Period{
		period(3600, 0, model.PurposeTx, 5),
		period(10800, 0, model.PurposeTx, -1),
	}
	got := AggregateConnectors([][]model.Period{conn1, conn2}, 30, 50)
	require.Len(t, got, 4)

	// 50-20; 30+10-25; 15+10; 25+25 clamps to the ceiling
	want := []struct {
		ts    int
		limit model.Limit
	}{
		{0, model.Bounded(30)},
		{3600, model.Bounded(15)},
		{7200, model.Bounded(25)},
		{10800, model.Unlimited},
	}
	for i, w := range want {
		assert.Equal(t, w.ts, got[i].TS)
		assert.Equal(t, w.limit, got[i].Limit, "ts %d", w.ts)
		assert.Equal(t, model.PurposeTx, got[i].Purpose)
	}
}

func TestAggregateConnectorsClampsAtZero(t *testing.T) {
	seqs := [][]model.Period{
		{period(0, 0, model.PurposeTx, 0)},
		{period(0, 0, model.PurposeTx, 0)},
	}
	got := AggregateConnectors(seqs, 30, 40)
	require.Len(t, got, 1)
	assert.Equal(t, model.Bounded(0), got[0].Limit)
}

func TestCombineDropsDayEndAndDuplicates(t *testing.T) {
	stationMax := []model.Period{
		period(0, 0, model.PurposeStationMax, 20),
		period(model.LastSecondOfDay, 0, model.PurposeStationMax, -1),
	}
	tx := []model.Period{
		period(3600, 0, model.PurposeTx, 25),
		period(7200, 0, model.PurposeTx, 12),
		period(9000, 0, model.PurposeTx, -1),
	}
	got := Combine(stationMax, tx, 30)
	assert.Equal(t, entries(0, 20, 7200, 12, 9000, 20), got)
}

func TestCurrentLimit(t *testing.T) {
	s := entries(3600, 10, 7200, 20, 10800, -1)

	_, ok := CurrentLimit(s, 0, ScanLatestStarted)
	assert.False(t, ok)
	_, ok = CurrentLimit(nil, 5000, ScanFirstMatch)
	assert.False(t, ok)

	l, ok := CurrentLimit(s, 11000, ScanLatestStarted)
	require.True(t, ok)
	assert.True(t, l.IsUnlimited())

	l, ok = CurrentLimit(s, 11000, ScanFirstMatch)
	require.True(t, ok)
	assert.Equal(t, model.Bounded(10), l)
}

func TestParseScanMode(t *testing.T) {
	m, err := ParseScanMode("")
	require.NoError(t, err)
	assert.Equal(t, ScanLatestStarted, m)
	m, err = ParseScanMode("first_match")
	require.NoError(t, err)
	assert.Equal(t, ScanFirstMatch, m)
	assert.Equal(t, "first_match", m.String())
	_, err = ParseScanMode("backwards")
	assert.Error(t, err)
}

func TestExtractPeriodsRecurringAnchorIgnoresDate(t *testing.T) {
	weekAgo := day.AddDate(0, 0, -7)
	p := allDay(1, 4, 0, model.PurposeTxDefault, sp(0, 10), sp(1800, 8))
	p.Kind = model.KindRecurring
	p.ValidFrom, p.ValidTo = weekAgo, time.Time{}
	p.Schedule.StartSchedule = weekAgo.Add(18 * time.Hour)
	p.Schedule.Duration = 3600

	got := ExtractPeriods([]model.ChargingProfile{p}, at(12, 0))
	require.Len(t, got, 3)
	assert.Equal(t, 64800, got[0].TS)
	assert.Equal(t, model.Bounded(10), got[0].Limit)
	assert.Equal(t, 66600, got[1].TS)
	assert.Equal(t, 64800+3600, got[2].TS)
	assert.True(t, got[2].Ends())
}
