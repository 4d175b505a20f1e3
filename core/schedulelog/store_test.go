package schedulelog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartcharge/core/model"
)

var base = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func record(offset time.Duration, connectorID int) Record {
	r := NewRecord(base.Add(offset), "cp1", connectorID)
	r.Ceiling = 30
	r.Trigger = "profile_added"
	r.Schedule = model.CompositeSchedule{{TS: 0, Limit: model.Bounded(16)}, {TS: 3600, Limit: model.Unlimited}}
	r.Limit = model.Bounded(16)
	r.HasLimit = true
	return r
}

func intPtr(v int) *int { return &v }

func stores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	jsonl, err := NewJSONLStore(filepath.Join(dir, "schedule.jsonl"))
	require.NoError(t, err)
	rotating, err := NewRotatingJSONLStore(filepath.Join(dir, "rotating", "schedule.jsonl"), 1, 2, 1)
	require.NoError(t, err)
	sqlite, err := NewSQLiteStore("file:schedulelog_stores?mode=memory&cache=shared")
	require.NoError(t, err)
	out := map[string]Store{"jsonl": jsonl, "rotating": rotating, "sqlite": sqlite}
	t.Cleanup(func() {
		for _, s := range out {
			_ = s.Close()
		}
	})
	return out
}

func TestRecordJSONKeys(t *testing.T) {
	data, err := json.Marshal(record(0, 1))
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, k := range []string{"id", "timestamp", "charge_point_id", "connector_id", "ceiling", "trigger", "schedule", "limit", "has_limit"} {
		assert.Contains(t, m, k)
	}
}

func TestNewRecordIDsAreUnique(t *testing.T) {
	assert.NotEqual(t, NewRecord(base, "cp1", 0).ID, NewRecord(base, "cp1", 0).ID)
}

func TestStoresPersistAndQuery(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			recs := []Record{record(2*time.Hour, 1), record(0, 0), record(time.Hour, 1)}
			for _, r := range recs {
				require.NoError(t, store.Append(ctx, r))
			}

			all, err := store.Query(ctx, Query{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, recs[1].ID, all[0].ID, "records come back in time order")
			assert.Equal(t, recs[1].Schedule, all[0].Schedule)
			assert.True(t, all[0].Timestamp.Equal(recs[1].Timestamp))

			conn1, err := store.Query(ctx, Query{ConnectorID: intPtr(1)})
			require.NoError(t, err)
			assert.Len(t, conn1, 2)

			window, err := store.Query(ctx, Query{Start: base.Add(30 * time.Minute), End: base.Add(time.Hour)})
			require.NoError(t, err)
			require.Len(t, window, 1)
			assert.Equal(t, recs[2].ID, window[0].ID)
		})
	}
}

func TestQueryMatch(t *testing.T) {
	r := record(time.Hour, 2)
	assert.True(t, Query{}.match(r))
	assert.True(t, Query{Start: r.Timestamp, End: r.Timestamp}.match(r), "bounds are inclusive")
	assert.False(t, Query{Start: r.Timestamp.Add(time.Second)}.match(r))
	assert.False(t, Query{End: r.Timestamp.Add(-time.Second)}.match(r))
	assert.False(t, Query{ConnectorID: intPtr(1)}.match(r))
}

func TestJSONLSkipsGarbageLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.jsonl")
	store, err := NewJSONLStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), record(0, 1)))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out, err := store.Query(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestRotatingJSONLStoreRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 2, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	rec := record(0, 1)
	long := make(model.CompositeSchedule, 0, 1000)
	for i := 0; i < 1000; i++ {
		long = append(long, model.ScheduleEntry{TS: i * 60, Limit: model.Bounded(float64(i))})
	}
	rec.Schedule = long
	for i := 0; i < 100; i++ {
		rec.ID = NewRecord(base, "cp1", 1).ID
		require.NoError(t, store.Append(context.Background(), rec))
	}
	files, err := filepath.Glob(filepath.Join(filepath.Dir(path), "schedule*.jsonl"))
	require.NoError(t, err)
	assert.Greater(t, len(files), 1, "expected rotated backups")
}

func TestNopStore(t *testing.T) {
	var s Store = NopStore{}
	require.NoError(t, s.Append(context.Background(), record(0, 0)))
	out, err := s.Query(context.Background(), Query{})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, s.Close())
}
