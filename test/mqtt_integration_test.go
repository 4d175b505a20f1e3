//go:build !no_containers

package test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/smartcharge/app"
	"github.com/kilianp07/smartcharge/config"
	"github.com/kilianp07/smartcharge/core/clock"
	"github.com/kilianp07/smartcharge/core/model"
	coremqtt "github.com/kilianp07/smartcharge/core/mqtt"
	"github.com/kilianp07/smartcharge/infra/ocpp"
	"github.com/kilianp07/smartcharge/test/util"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func txDefault(connector, id int, limit float64) model.ChargingProfile {
	return model.ChargingProfile{
		ConnectorID: connector,
		ProfileID:   id,
		Purpose:     model.PurposeTxDefault,
		Kind:        model.KindAbsolute,
		ValidFrom:   day,
		ValidTo:     clock.EndOfDay(day, time.UTC),
		Schedule: model.ChargingSchedule{
			StartSchedule: day,
			Periods:       []model.SchedulePeriod{{StartPeriod: 0, Limit: model.Bounded(limit), NumberPhases: 3}},
		},
	}
}

func TestSetChargingProfileOverMQTT(t *testing.T) {
	if testing.Short() {
		t.Skip("container test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	broker, cleanup, err := util.StartMosquitto(ctx)
	require.NoError(t, err)
	defer cleanup()

	cfg := &config.Config{
		ChargePoint: config.ChargePointConfig{ID: "cp-it", StationCeiling: 32, ConnectorCeiling: 32, Connectors: 1, Timezone: "UTC"},
		Logging:     config.LoggingConfig{Path: filepath.Join(t.TempDir(), "journal.jsonl")},
	}
	cfg.MQTT.Broker = broker
	cfg.SetDefaults()
	cfg.API.Address = ""
	require.NoError(t, cfg.Validate())

	svc, err := app.New(cfg,
		app.WithClock(clock.Fixed{T: day.Add(8 * time.Hour)}),
		app.WithGatherer(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- svc.Run(runCtx) }()

	observer := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("observer"))
	token := observer.Connect()
	require.True(t, token.WaitTimeout(10*time.Second))
	require.NoError(t, token.Error())
	defer observer.Disconnect(100)

	updates := make(chan coremqtt.ScheduleUpdate, 16)
	scheduleTopic := coremqtt.ScheduleTopic(cfg.MQTT.TopicPrefix, cfg.ChargePoint.ID, 1)
	token = observer.Subscribe(scheduleTopic, 1, func(_ paho.Client, m paho.Message) {
		var u coremqtt.ScheduleUpdate
		if json.Unmarshal(m.Payload(), &u) == nil {
			updates <- u
		}
	})
	require.True(t, token.WaitTimeout(10*time.Second))
	require.NoError(t, token.Error())

	requestTopic := coremqtt.RequestTopic(cfg.MQTT.TopicPrefix, cfg.ChargePoint.ID, coremqtt.SetChargingProfileTopic)
	responses := make(chan map[string]string, 4)
	token = observer.Subscribe(requestTopic+coremqtt.ResponseSuffix, 1, func(_ paho.Client, m paho.Message) {
		var r map[string]string
		if json.Unmarshal(m.Payload(), &r) == nil {
			responses <- r
		}
	})
	require.True(t, token.WaitTimeout(10*time.Second))
	require.NoError(t, token.Error())

	payload, err := json.Marshal(map[string]any{
		"messageId": "req-1",
		"payload":   ocpp.ProfileToOCPP(txDefault(1, 7, 16)),
	})
	require.NoError(t, err)

	// The service subscribes on connect, which may lag behind Run.
	var resp map[string]string
	require.Eventually(t, func() bool {
		observer.Publish(requestTopic, 1, false, payload).WaitTimeout(time.Second)
		select {
		case resp = <-responses:
			return true
		case <-time.After(500 * time.Millisecond):
			return false
		}
	}, 30*time.Second, 100*time.Millisecond)
	assert.Equal(t, "req-1", resp["messageId"])
	assert.Equal(t, "Accepted", resp["status"])

	deadline := time.After(15 * time.Second)
	for {
		select {
		case u := <-updates:
			if u.Limit == nil {
				continue
			}
			assert.Equal(t, "16", u.Limit.String())
			assert.Equal(t, model.CompositeSchedule{{TS: 0, Limit: model.Bounded(16)}}, u.Schedule)
			stop()
			select {
			case err := <-done:
				assert.True(t, err == nil || err == context.Canceled, "run: %v", err)
			case <-time.After(5 * time.Second):
				t.Fatal("service did not stop")
			}
			return
		case <-deadline:
			t.Fatal("no schedule update with a limit")
		}
	}
}
