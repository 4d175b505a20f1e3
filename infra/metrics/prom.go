package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
)

// PromSink exposes schedule computations and profile changes as Prometheus
// metrics.
type PromSink struct {
	limit        *prometheus.GaugeVec
	segments     *prometheus.GaugeVec
	computations *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	profiles     *prometheus.CounterVec
	requests     *prometheus.CounterVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		limit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smartcharge_composite_limit",
			Help: "Limit currently in force per connector, -1 when unlimited",
		}, []string{"charge_point_id", "connector_id"}),
		segments: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smartcharge_composite_segments",
			Help: "Number of entries of the latest composite schedule",
		}, []string{"charge_point_id", "connector_id"}),
		computations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartcharge_schedule_computations_total",
			Help: "Total number of composite schedule computations",
		}, []string{"connector_id", "trigger"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smartcharge_schedule_computation_seconds",
			Help:    "Time spent computing a composite schedule",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"connector_id"}),
		profiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartcharge_profile_changes_total",
			Help: "Charging profile changes by kind and purpose",
		}, []string{"kind", "purpose"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartcharge_requests_total",
			Help: "SetChargingProfile and ClearChargingProfile requests by status",
		}, []string{"action", "status"}),
	}
	var err error
	if s.limit, err = register(reg, s.limit); err != nil {
		return nil, err
	}
	if s.segments, err = register(reg, s.segments); err != nil {
		return nil, err
	}
	if s.computations, err = register(reg, s.computations); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.profiles, err = register(reg, s.profiles); err != nil {
		return nil, err
	}
	if s.requests, err = register(reg, s.requests); err != nil {
		return nil, err
	}
	return s, nil
}

// register reuses an already registered collector of the same shape.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordSchedule updates the limit and segment gauges.
func (s *PromSink) RecordSchedule(ev coremetrics.ScheduleEvent) error {
	connector := strconv.Itoa(ev.ConnectorID)
	if ev.HasLimit {
		s.limit.WithLabelValues(ev.ChargePointID, connector).Set(ev.Limit.Wire())
	} else {
		s.limit.DeleteLabelValues(ev.ChargePointID, connector)
	}
	s.segments.WithLabelValues(ev.ChargePointID, connector).Set(float64(ev.Segments))
	s.computations.WithLabelValues(connector, ev.Trigger).Inc()
	s.duration.WithLabelValues(connector).Observe(ev.Duration.Seconds())
	return nil
}

// RecordProfileChange counts registry changes.
func (s *PromSink) RecordProfileChange(ev coremetrics.ProfileEvent) error {
	s.profiles.WithLabelValues(ev.Kind, ev.Purpose.String()).Inc()
	return nil
}

// RecordRequest counts protocol requests by outcome.
func (s *PromSink) RecordRequest(ev coremetrics.RequestEvent) error {
	s.requests.WithLabelValues(ev.Action, ev.Status).Inc()
	return nil
}

// Handler serves the metrics of g in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
