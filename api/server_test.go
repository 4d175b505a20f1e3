package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/registry"
	"github.com/kilianp07/smartcharge/core/schedulelog"
	"github.com/kilianp07/smartcharge/core/smartcharging"
)

type stubScheduler struct {
	schedules map[int]model.CompositeSchedule
}

func (s stubScheduler) Schedule(_ context.Context, id int) (model.CompositeSchedule, error) {
	sched, ok := s.schedules[id]
	if !ok {
		return nil, fmt.Errorf("connector %d: %w", id, smartcharging.ErrUnknownConnector)
	}
	return sched, nil
}

func (s stubScheduler) Limit(ctx context.Context, id int) (model.Limit, bool, error) {
	sched, err := s.Schedule(ctx, id)
	if err != nil {
		return model.Unlimited, false, err
	}
	l, ok := smartcharging.CurrentLimit(sched, 0, smartcharging.ScanLatestStarted)
	return l, ok, nil
}

type memStore struct{ recs []schedulelog.Record }

func (m *memStore) Append(_ context.Context, r schedulelog.Record) error {
	m.recs = append(m.recs, r)
	return nil
}

func (m *memStore) Query(_ context.Context, q schedulelog.Query) ([]schedulelog.Record, error) {
	var res []schedulelog.Record
	for _, r := range m.recs {
		if q.ConnectorID != nil && *q.ConnectorID != r.ConnectorID {
			continue
		}
		res = append(res, r)
	}
	return res, nil
}

func (m *memStore) Close() error { return nil }

const profileJSON = `{
	"connectorId": 1, "chargingProfileId": 7, "stackLevel": 0,
	"chargingProfilePurpose": "TxDefaultProfile", "chargingProfileKind": "Absolute",
	"chargingSchedule": {"startSchedule": "2025-03-10T00:00:00Z", "duration": 0,
		"chargingSchedulePeriod": [{"startPeriod": 0, "limit": 16, "numberPhases": 3}]}}`

func newTestServer(t *testing.T) (*httptest.Server, *registry.Registry, *memStore) {
	t.Helper()
	reg := registry.New(nil)
	journal := &memStore{}
	s := &Server{
		Profiles: reg,
		Scheduler: stubScheduler{schedules: map[int]model.CompositeSchedule{
			0: {{TS: 0, Limit: model.Bounded(32)}},
			1: {},
		}},
		Journal:      journal,
		Token:        "tok",
		Gatherer:     prometheus.NewRegistry(),
		MaxConnector: 2,
	}
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return srv, reg, journal
}

func do(t *testing.T, method, url, body string, header ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func doAuth(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	return do(t, method, url, body, "Authorization", "Bearer tok")
}

func TestProfileLifecycle(t *testing.T) {
	srv, reg, _ := newTestServer(t)

	resp := doAuth(t, http.MethodPost, srv.URL+"/api/profiles", profileJSON)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var change map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&change))
	assert.Equal(t, "added", change["change"])

	resp = doAuth(t, http.MethodPost, srv.URL+"/api/profiles", profileJSON)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&change))
	assert.Equal(t, "replaced", change["change"])

	resp = doAuth(t, http.MethodGet, srv.URL+"/api/profiles", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var set model.ProfileSet
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&set))
	require.Len(t, set.TxDefault, 1)
	assert.Equal(t, model.Bounded(16), set.TxDefault[0].Schedule.Periods[0].Limit)

	resp = doAuth(t, http.MethodDelete, srv.URL+"/api/profiles/1/7", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = doAuth(t, http.MethodDelete, srv.URL+"/api/profiles/1/7", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, "unknown profiles are not an error")

	got, err := reg.Profiles(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got.Len())
}

func TestSetProfileRejectsInvalid(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doAuth(t, http.MethodPost, srv.URL+"/api/profiles", "{")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	invalid := strings.Replace(profileJSON, `"startPeriod": 0`, `"startPeriod": -5`, 1)
	resp = doAuth(t, http.MethodPost, srv.URL+"/api/profiles", invalid)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doAuth(t, http.MethodDelete, srv.URL+"/api/profiles/x/7", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScheduleAndLimit(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doAuth(t, http.MethodGet, srv.URL+"/api/schedule", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sched []map[string]float64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sched))
	assert.Equal(t, []map[string]float64{{"ts": 0, "limit": 32}}, sched)

	resp = doAuth(t, http.MethodGet, srv.URL+"/api/limit?connector_id=0", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var limit map[string]float64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&limit))
	assert.Equal(t, map[string]float64{"connector_id": 0, "limit": 32}, limit)

	resp = doAuth(t, http.MethodGet, srv.URL+"/api/schedule?connector_id=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sched))
	assert.Empty(t, sched)

	resp = doAuth(t, http.MethodGet, srv.URL+"/api/limit?connector_id=1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doAuth(t, http.MethodGet, srv.URL+"/api/limit?connector_id=9", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doAuth(t, http.MethodGet, srv.URL+"/api/schedule?connector_id=-1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogHandlerAuthAndFilters(t *testing.T) {
	srv, _, journal := newTestServer(t)
	now := time.Now()
	require.NoError(t, journal.Append(context.Background(), schedulelog.NewRecord(now, "cp1", 1)))
	require.NoError(t, journal.Append(context.Background(), schedulelog.NewRecord(now, "cp1", 2)))

	resp := do(t, http.MethodGet, srv.URL+"/api/schedule/logs?connector_id=1", "", "Authorization", "Bearer tok")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out []schedulelog.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].ConnectorID)

	resp = do(t, http.MethodGet, srv.URL+"/api/schedule/logs", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/schedule/logs?connector_id=x", "", "Authorization", "Bearer tok")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _, _ := newTestServer(t)
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/healthz", "").StatusCode)
	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/metrics", "").StatusCode)
}

func TestAPIRequiresToken(t *testing.T) {
	srv, reg, _ := newTestServer(t)
	cases := []struct{ method, path, body string }{
		{http.MethodGet, "/api/profiles", ""},
		{http.MethodPost, "/api/profiles", profileJSON},
		{http.MethodDelete, "/api/profiles/1/7", ""},
		{http.MethodGet, "/api/schedule", ""},
		{http.MethodGet, "/api/limit", ""},
		{http.MethodGet, "/api/schedule/logs", ""},
	}
	for _, c := range cases {
		t.Run(c.method+" "+c.path, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, do(t, c.method, srv.URL+c.path, c.body).StatusCode)
			assert.Equal(t, http.StatusUnauthorized,
				do(t, c.method, srv.URL+c.path, c.body, "Authorization", "Bearer wrong").StatusCode)
		})
	}
	got, err := reg.Profiles(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got.Len(), "rejected requests must not change the registry")

	assert.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/healthz", "").StatusCode)
}

func TestSetProfileRejectsUnknownConnector(t *testing.T) {
	srv, reg, _ := newTestServer(t)
	body := strings.Replace(profileJSON, `"connectorId": 1`, `"connectorId": 3`, 1)
	resp := doAuth(t, http.MethodPost, srv.URL+"/api/profiles", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	got, err := reg.Profiles(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got.Len())
}
