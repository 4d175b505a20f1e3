// Package api exposes the charge point's profiles, composite schedules and
// schedule journal over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/registry"
	"github.com/kilianp07/smartcharge/core/schedulelog"
	inframetrics "github.com/kilianp07/smartcharge/infra/metrics"
)

// ProfileRegistry is the part of registry.Registry the API needs.
type ProfileRegistry interface {
	Add(ctx context.Context, p model.ChargingProfile) (registry.EventKind, error)
	Remove(ctx context.Context, connectorID, profileID int) (bool, error)
	Profiles(ctx context.Context) (model.ProfileSet, error)
}

// Scheduler computes composite schedules for the charge point's connectors.
type Scheduler interface {
	Schedule(ctx context.Context, connectorID int) (model.CompositeSchedule, error)
	Limit(ctx context.Context, connectorID int) (model.Limit, bool, error)
}

type Server struct {
	Profiles  ProfileRegistry
	Scheduler Scheduler
	// Journal is optional; the log endpoint answers 404 without it.
	Journal schedulelog.Store
	// Token protects every /api route when non-empty.
	Token string
	// MaxConnector is the highest connector id accepted by SetProfile.
	// Zero disables the check.
	MaxConnector int
	// Gatherer backs /metrics; prometheus.DefaultGatherer when nil.
	Gatherer prometheus.Gatherer
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return RequireBearer(s.Token, next) })
		r.Get("/profiles", s.ListProfiles)
		r.Post("/profiles", s.SetProfile)
		r.Delete("/profiles/{connectorID}/{profileID}", s.ClearProfile)
		r.Get("/schedule", s.GetSchedule)
		r.Get("/limit", s.GetLimit)
		if s.Journal != nil {
			r.Method(http.MethodGet, "/schedule/logs", NewLogHandler(s.Journal, ""))
		}
	})

	g := s.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", inframetrics.Handler(g))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}
