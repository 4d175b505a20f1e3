package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/smartcharging"
)

type limitResponse struct {
	ConnectorID int         `json:"connector_id"`
	Limit       model.Limit `json:"limit"`
}

func (s *Server) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := connectorParam(w, r)
	if !ok {
		return
	}
	sched, err := s.Scheduler.Schedule(r.Context(), id)
	if err != nil {
		scheduleError(w, err)
		return
	}
	if sched == nil {
		sched = model.CompositeSchedule{}
	}
	writeJSON(w, http.StatusOK, sched)
}

// GetLimit answers 204 when no limit is known for the connector.
func (s *Server) GetLimit(w http.ResponseWriter, r *http.Request) {
	id, ok := connectorParam(w, r)
	if !ok {
		return
	}
	limit, found, err := s.Scheduler.Limit(r.Context(), id)
	if err != nil {
		scheduleError(w, err)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, limitResponse{ConnectorID: id, Limit: limit})
}

// connectorParam reads connector_id, 0 (the station) when absent.
func connectorParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("connector_id")
	if raw == "" {
		return 0, true
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		http.Error(w, "connector_id must be a non-negative integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func scheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, smartcharging.ErrUnknownConnector):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, smartcharging.ErrInvalidConnector):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
