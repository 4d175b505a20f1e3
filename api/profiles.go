package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kilianp07/smartcharge/core/model"
)

const maxBody = 1 << 20

func (s *Server) ListProfiles(w http.ResponseWriter, r *http.Request) {
	set, err := s.Profiles.Profiles(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// SetProfile installs the profile in the request body, replacing the one
// with the same connector, stack level and purpose.
func (s *Server) SetProfile(w http.ResponseWriter, r *http.Request) {
	var p model.ChargingProfile
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&p); err != nil {
		http.Error(w, "invalid profile: "+err.Error(), http.StatusBadRequest)
		return
	}
	if s.MaxConnector > 0 && p.ConnectorID > s.MaxConnector {
		http.Error(w, fmt.Sprintf("unknown connector %d", p.ConnectorID), http.StatusBadRequest)
		return
	}
	kind, err := s.Profiles.Add(r.Context(), p)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"change": kind.String()})
}

// ClearProfile removes a profile. Unknown profiles are not an error.
func (s *Server) ClearProfile(w http.ResponseWriter, r *http.Request) {
	connectorID, err1 := strconv.Atoi(chi.URLParam(r, "connectorID"))
	profileID, err2 := strconv.Atoi(chi.URLParam(r, "profileID"))
	if err1 != nil || err2 != nil {
		http.Error(w, "connector and profile ids must be integers", http.StatusBadRequest)
		return
	}
	if _, err := s.Profiles.Remove(r.Context(), connectorID, profileID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
