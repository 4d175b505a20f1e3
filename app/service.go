package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/smartcharge/api"
	"github.com/kilianp07/smartcharge/app/plugins"
	"github.com/kilianp07/smartcharge/config"
	"github.com/kilianp07/smartcharge/core/clock"
	coremetrics "github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/model"
	coremon "github.com/kilianp07/smartcharge/core/monitoring"
	coremqtt "github.com/kilianp07/smartcharge/core/mqtt"
	"github.com/kilianp07/smartcharge/core/registry"
	"github.com/kilianp07/smartcharge/core/schedulelog"
	"github.com/kilianp07/smartcharge/core/smartcharging"
	"github.com/kilianp07/smartcharge/infra/logger"
	inframetrics "github.com/kilianp07/smartcharge/infra/metrics"
	"github.com/kilianp07/smartcharge/infra/mqtt"
	"github.com/kilianp07/smartcharge/infra/profilestore"
)

// Triggers recorded with every computation.
const (
	TriggerStartup     = "startup"
	TriggerDayRollover = "day_rollover"
	TriggerValidity    = "validity_boundary"
	TriggerManual      = "manual"
)

// Service keeps the composite schedules of one charge point up to date: it
// recomputes them whenever the installed profiles change and hands them to
// the metrics sinks, the journal and the MQTT publisher.
type Service struct {
	Registry *registry.Registry
	Engine   *smartcharging.Engine

	cp        config.ChargePointConfig
	apiCfg    config.APIConfig
	store     registry.Store
	journal   schedulelog.Store
	sink      coremetrics.MetricsSink
	publisher coremqtt.Publisher
	client    *mqtt.PahoClient
	gatherer  prometheus.Gatherer
	log       logger.Logger

	refreshMu sync.Mutex
}

type options struct {
	clock     clock.Clock
	publisher coremqtt.Publisher
	sink      coremetrics.MetricsSink
	journal   schedulelog.Store
	gatherer  prometheus.Gatherer
}

// Option customises the Service built by New.
type Option func(*options)

// WithClock replaces the wall clock in the charge point's time zone.
func WithClock(c clock.Clock) Option { return func(o *options) { o.clock = c } }

// WithPublisher bypasses the MQTT client built from configuration.
func WithPublisher(p coremqtt.Publisher) Option { return func(o *options) { o.publisher = p } }

// WithMetricsSink bypasses the sinks built from configuration.
func WithMetricsSink(s coremetrics.MetricsSink) Option { return func(o *options) { o.sink = s } }

// WithJournal bypasses the journal built from configuration.
func WithJournal(j schedulelog.Store) Option { return func(o *options) { o.journal = j } }

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option { return func(o *options) { o.gatherer = g } }

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if o.clock == nil {
		loc, err := cfg.ChargePoint.Location()
		if err != nil {
			return nil, err
		}
		o.clock = clock.System{Location: loc}
	}
	if o.gatherer == nil {
		o.gatherer = prometheus.DefaultGatherer
	}

	store, err := profilestore.New(cfg.Registry.Module(cfg.ChargePoint.ID))
	if err != nil {
		return nil, fmt.Errorf("profile store: %w", err)
	}
	svc := &Service{
		cp:       cfg.ChargePoint,
		apiCfg:   cfg.API,
		store:    store,
		gatherer: o.gatherer,
		log:      logger.New("service"),
	}
	svc.Registry = registry.New(store,
		registry.WithClock(o.clock),
		registry.WithLogger(logger.New("registry")))
	svc.Engine = smartcharging.NewEngine(o.clock,
		smartcharging.WithConnectorCeiling(cfg.ChargePoint.ConnectorCeiling),
		smartcharging.WithScanMode(cfg.ChargePoint.ScanMode()),
		smartcharging.WithLogger(logger.New("engine")))

	svc.sink = o.sink
	if svc.sink == nil {
		if svc.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
	}
	svc.journal = o.journal
	if svc.journal == nil {
		if svc.journal, err = plugins.NewJournal(cfg.Logging); err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("journal: %w", err)
		}
	}

	svc.publisher = o.publisher
	switch {
	case svc.publisher != nil:
	case cfg.MQTT.Broker != "":
		mopts := []mqtt.Option{mqtt.WithMaxConnector(cfg.ChargePoint.Connectors)}
		if rec, ok := svc.sink.(coremetrics.RequestRecorder); ok {
			mopts = append(mopts, mqtt.WithRequestRecorder(rec))
		}
		client, err := mqtt.NewPahoClient(cfg.MQTT, cfg.ChargePoint.ID, svc.Registry, mopts...)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.client = client
		svc.publisher = client
	default:
		svc.log.Warnf("no MQTT broker configured, schedules are not published")
		svc.publisher = coremqtt.NopPublisher{}
	}
	return svc, nil
}

// Handler returns the HTTP API of the service.
func (s *Service) Handler() http.Handler {
	srv := &api.Server{
		Profiles:     s.Registry,
		Scheduler:    s,
		Journal:      s.journal,
		Token:        s.apiCfg.Token,
		MaxConnector: s.cp.Connectors,
		Gatherer:     s.gatherer,
	}
	return srv.Routes()
}

// Schedule computes the composite schedule of connectorID now.
func (s *Service) Schedule(ctx context.Context, connectorID int) (model.CompositeSchedule, error) {
	if connectorID > s.cp.Connectors {
		return nil, fmt.Errorf("connector %d: %w", connectorID, smartcharging.ErrUnknownConnector)
	}
	set, err := s.Registry.Profiles(ctx)
	if err != nil {
		return nil, err
	}
	return s.Engine.CompositeSchedule(connectorID, set, s.cp.Ceiling(connectorID))
}

// Limit returns the limit in force on connectorID now.
func (s *Service) Limit(ctx context.Context, connectorID int) (model.Limit, bool, error) {
	if connectorID > s.cp.Connectors {
		return model.Unlimited, false, fmt.Errorf("connector %d: %w", connectorID, smartcharging.ErrUnknownConnector)
	}
	set, err := s.Registry.Profiles(ctx)
	if err != nil {
		return model.Unlimited, false, err
	}
	return s.Engine.LimitNow(connectorID, set, s.cp.Ceiling(connectorID))
}

// Refresh recomputes the schedule of the station and of every connector
// from a single reading of the clock.
func (s *Service) Refresh(ctx context.Context, trigger string) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	set, err := s.Registry.Profiles(ctx)
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}
	now := s.Engine.Clock().Now()
	var errs []error
	for _, id := range s.cp.ConnectorIDs() {
		if err := s.refreshConnector(ctx, now, id, set, trigger); err != nil {
			errs = append(errs, fmt.Errorf("connector %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) refreshConnector(ctx context.Context, now clock.Instant, connectorID int, set model.ProfileSet, trigger string) error {
	ceiling := s.cp.Ceiling(connectorID)
	started := time.Now()
	sched, err := s.Engine.CompositeScheduleAt(now, connectorID, set, ceiling)
	if err != nil {
		return err
	}
	elapsed := time.Since(started)
	limit, hasLimit := smartcharging.CurrentLimit(sched, now.SecondsFromMidnight, s.Engine.ScanMode())

	if err := s.sink.RecordSchedule(coremetrics.ScheduleEvent{
		ChargePointID: s.cp.ID,
		ConnectorID:   connectorID,
		Ceiling:       ceiling,
		Trigger:       trigger,
		Segments:      len(sched),
		Limit:         limit,
		HasLimit:      hasLimit,
		Duration:      elapsed,
		Time:          now.Time,
	}); err != nil {
		s.log.Warnf("record schedule for connector %d: %v", connectorID, err)
	}

	rec := schedulelog.NewRecord(now.Time, s.cp.ID, connectorID)
	rec.Ceiling = ceiling
	rec.Trigger = trigger
	rec.Schedule = sched
	rec.Limit = limit
	rec.HasLimit = hasLimit
	if err := s.journal.Append(ctx, rec); err != nil {
		s.log.Errorf("journal append for connector %d: %v", connectorID, err)
		coremon.CaptureException(err, map[string]string{"module": "journal"})
	}

	update := coremqtt.ScheduleUpdate{
		MessageID:     uuid.NewString(),
		ChargePointID: s.cp.ID,
		ConnectorID:   connectorID,
		Ceiling:       ceiling,
		Schedule:      sched,
		ComputedAt:    now.Time,
	}
	if hasLimit {
		update.Limit = &limit
	}
	if err := s.publisher.PublishSchedule(ctx, update); err != nil {
		if errors.Is(err, coremqtt.ErrNotConnected) {
			s.log.Warnf("schedule for connector %d not published: %v", connectorID, err)
		} else {
			s.log.Errorf("publish schedule for connector %d: %v", connectorID, err)
		}
	}
	s.log.Debugw("schedule refreshed", map[string]any{
		"connector_id": connectorID,
		"trigger":      trigger,
		"entries":      len(sched),
		"limit":        limit.String(),
		"has_limit":    hasLimit,
	})
	return nil
}

// Run refreshes the schedules on start, on every registry change, when a
// profile's validity window opens or closes and at each day boundary, and serves the HTTP API when an address is configured.
// It blocks until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	defer coremon.Recover()
	events := s.Registry.Subscribe()
	defer s.Registry.Unsubscribe(events)
	inframetrics.StartEventCollector(ctx, s.Registry, s.sink, s.cp.ID)

	if err := s.Refresh(ctx, TriggerStartup); err != nil {
		s.log.Errorf("initial refresh: %v", err)
	}

	errc := make(chan error, 1)
	var srv *http.Server
	if s.apiCfg.Address != "" {
		srv = &http.Server{Addr: s.apiCfg.Address, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			s.log.Infof("HTTP API listening on %s", s.apiCfg.Address)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
	}
	defer func() {
		if srv == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	wait, wakeTrigger := s.nextWake(ctx)
	wake := time.NewTimer(wait)
	defer wake.Stop()
	rearm := func() {
		if !wake.Stop() {
			select {
			case <-wake.C:
			default:
			}
		}
		wait, wakeTrigger = s.nextWake(ctx)
		wake.Reset(wait)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return fmt.Errorf("http server: %w", err)
		case <-wake.C:
			if err := s.Refresh(ctx, wakeTrigger); err != nil {
				s.log.Errorf("refresh: %v", err)
			}
			wait, wakeTrigger = s.nextWake(ctx)
			wake.Reset(wait)
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			trigger := "profile_" + ev.Kind.String()
			// One refresh covers every change already queued.
		drain:
			for {
				select {
				case _, ok := <-events:
					if !ok {
						break drain
					}
				default:
					break drain
				}
			}
			if err := s.Refresh(ctx, trigger); err != nil {
				s.log.Errorf("refresh: %v", err)
			}
			rearm()
		}
	}
}

// nextWake returns the wait until the schedules must be recomputed without a
// registry change: the next validity boundary of an installed profile, or
// the day rollover when it comes first.
func (s *Service) nextWake(ctx context.Context) (time.Duration, string) {
	wait, trigger := s.untilTomorrow(), TriggerDayRollover
	set, err := s.Registry.Profiles(ctx)
	if err != nil {
		s.log.Warnf("validity boundaries: %v", err)
		return wait, trigger
	}
	now := s.Engine.Clock().Now().Time
	if at, ok := nextValidityBoundary(set, now); ok {
		if d := at.Sub(now); d < wait {
			wait, trigger = max(d, time.Millisecond), TriggerValidity
		}
	}
	return wait, trigger
}

// nextValidityBoundary returns the earliest instant after now at which a
// profile enters or leaves its validity window. validTo is inclusive, so the
// profile drops out one second later.
func nextValidityBoundary(set model.ProfileSet, now time.Time) (time.Time, bool) {
	var next time.Time
	consider := func(t time.Time) {
		if t.IsZero() || !t.After(now) {
			return
		}
		if next.IsZero() || t.Before(next) {
			next = t
		}
	}
	for _, purpose := range []model.Purpose{model.PurposeStationMax, model.PurposeTxDefault, model.PurposeTxOverride} {
		for _, p := range set.Profiles(purpose) {
			consider(p.ValidFrom)
			if !p.ValidTo.IsZero() {
				consider(p.ValidTo.Add(time.Second))
			}
		}
	}
	return next, !next.IsZero()
}

// untilTomorrow returns the wait until the first second of the next day in
// the engine's clock.
func (s *Service) untilTomorrow() time.Duration {
	now := s.Engine.Clock().Now().Time
	next := clock.EndOfDay(now, now.Location()).Add(time.Nanosecond)
	if d := next.Sub(now); d > 0 {
		return d
	}
	return time.Second
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.client != nil {
		s.client.Disconnect()
	}
	if s.Registry != nil {
		s.Registry.Close()
	}
	var errs []error
	if s.journal != nil {
		errs = append(errs, s.journal.Close())
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	errs = append(errs, profilestore.Close(s.store))
	return errors.Join(errs...)
}
