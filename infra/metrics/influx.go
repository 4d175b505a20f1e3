package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/infra/logger"
)

// InfluxSink writes schedule events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// InfluxConfig locates the InfluxDB bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordSchedule writes one composite_schedule point. The limit field is
// omitted when no limit is known.
func (s *InfluxSink) RecordSchedule(ev coremetrics.ScheduleEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("composite_schedule").
		AddTag("charge_point_id", ev.ChargePointID).
		AddTag("connector_id", strconv.Itoa(ev.ConnectorID)).
		AddTag("trigger", ev.Trigger).
		AddField("segments", ev.Segments).
		AddField("ceiling", round3(ev.Ceiling)).
		AddField("duration_us", ev.Duration.Microseconds())
	if ev.HasLimit {
		p = p.AddField("limit", round3(ev.Limit.Wire()))
	}
	p = p.SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordProfileChange writes one profile_change point.
func (s *InfluxSink) RecordProfileChange(ev coremetrics.ProfileEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("profile_change").
		AddTag("charge_point_id", ev.ChargePointID).
		AddTag("kind", ev.Kind).
		AddTag("purpose", ev.Purpose.String()).
		AddTag("connector_id", strconv.Itoa(ev.ConnectorID)).
		AddField("profile_id", ev.ProfileID).
		AddField("stack_level", ev.StackLevel).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
