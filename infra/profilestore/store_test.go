package profilestore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"

	"github.com/kilianp07/smartcharge/core/factory"
	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/registry"
	"github.com/kilianp07/smartcharge/test/util"
)

var start = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func profile(connectorID, profileID, level int, purpose model.Purpose, limit float64) model.ChargingProfile {
	return model.ChargingProfile{
		ConnectorID: connectorID,
		ProfileID:   profileID,
		StackLevel:  level,
		Purpose:     purpose,
		Kind:        model.KindAbsolute,
		ValidTo:     start.Add(24 * time.Hour),
		Schedule: model.ChargingSchedule{
			StartSchedule: start,
			Periods: []model.SchedulePeriod{
				{StartPeriod: 0, Limit: model.Bounded(limit)},
				{StartPeriod: 3600, Limit: model.Unlimited, NumberPhases: 3},
			},
		},
	}
}

// exerciseStore checks the behaviour every registry.Store must share.
func exerciseStore(t *testing.T, s registry.Store) {
	t.Helper()
	ctx := context.Background()

	set, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Zero(t, set.Len())

	defaults := []model.ChargingProfile{
		profile(1, 10, 0, model.PurposeTxDefault, 16),
		profile(0, 11, 1, model.PurposeTxDefault, 20),
	}
	require.NoError(t, s.Set(ctx, model.PurposeTxDefault, defaults))
	require.NoError(t, s.Set(ctx, model.PurposeStationMax, []model.ChargingProfile{profile(0, 1, 0, model.PurposeStationMax, 32)}))

	set, err = s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())
	got := set.Profiles(model.PurposeTxDefault)
	require.Len(t, got, 2)
	assert.Equal(t, 10, got[0].ProfileID, "insertion order is kept")
	assert.Equal(t, 11, got[1].ProfileID)
	assert.True(t, got[0].Schedule.StartSchedule.Equal(start))
	assert.Equal(t, model.Unlimited, got[0].Schedule.Periods[1].Limit)
	assert.Equal(t, 3, got[0].Schedule.Periods[1].NumberPhases)

	require.NoError(t, s.Set(ctx, model.PurposeTxDefault, defaults[1:]))
	set, err = s.Get(ctx)
	require.NoError(t, err)
	assert.Len(t, set.Profiles(model.PurposeTxDefault), 1)
	assert.Len(t, set.Profiles(model.PurposeStationMax), 1)

	err = s.Set(ctx, model.PurposeTx, nil)
	assert.True(t, errors.Is(err, model.ErrUnknownPurpose))

	kind, err := registry.Add(ctx, s, profile(2, 20, 0, model.PurposeTxOverride, 8))
	require.NoError(t, err)
	assert.Equal(t, registry.Added, kind)
	removed, ok, err := registry.Remove(ctx, s, 2, 20)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 20, removed.ProfileID)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(Config{DSN: "file:profiles_sqlite?mode=memory&cache=shared", ChargePointID: "cp1"})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestSQLiteStoreScopesChargePoints(t *testing.T) {
	dsn := "file:profiles_scoped?mode=memory&cache=shared"
	a, err := NewSQLiteStore(Config{DSN: dsn, ChargePointID: "a"})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	b, err := NewSQLiteStore(Config{DSN: dsn, ChargePointID: "b"})
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	require.NoError(t, a.Set(context.Background(), model.PurposeStationMax, []model.ChargingProfile{profile(0, 1, 0, model.PurposeStationMax, 32)}))
	set, err := b.Get(context.Background())
	require.NoError(t, err)
	assert.Zero(t, set.Len())
}

func TestSQLiteStoreRequiresDSN(t *testing.T) {
	_, err := NewSQLiteStore(Config{})
	assert.Error(t, err)
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("postgres test skipped in short mode")
	}
	dsn := os.Getenv("SMARTCHARGE_TEST_POSTGRES_DSN")
	if dsn == "" {
		tc.SkipIfProviderIsNotHealthy(t)
		var cleanup func()
		var err error
		dsn, cleanup, err = util.StartPostgres(context.Background())
		require.NoError(t, err)
		t.Cleanup(cleanup)
	}
	s, err := ConnectPostgres(context.Background(), Config{DSN: dsn, ChargePointID: "cp-" + time.Now().Format("150405.000000")})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestNewFromModuleConfig(t *testing.T) {
	s, err := New(factory.ModuleConfig{})
	require.NoError(t, err)
	assert.IsType(t, &registry.MemoryStore{}, s)
	assert.NoError(t, Close(s))

	s, err = New(factory.ModuleConfig{Type: "sqlite", Conf: map[string]any{
		"dsn":             "file:profiles_factory?mode=memory&cache=shared",
		"charge_point_id": "cp1",
	}})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	assert.NoError(t, Close(s))

	_, err = New(factory.ModuleConfig{Type: "redis"})
	assert.Error(t, err)
}
