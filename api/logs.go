package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/smartcharge/core/schedulelog"
)

// NewLogHandler returns an HTTP handler exposing the schedule journal via
// GET /api/schedule/logs. Requests must include an Authorization header with
// "Bearer <token>" when token is non-empty.
func NewLogHandler(store schedulelog.Store, token string) http.Handler {
	return RequireBearer(token, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := schedulelog.Query{}
		if s := r.URL.Query().Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := r.URL.Query().Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		if s := r.URL.Query().Get("connector_id"); s != "" {
			id, err := strconv.Atoi(s)
			if err != nil {
				http.Error(w, "connector_id must be an integer", http.StatusBadRequest)
				return
			}
			q.ConnectorID = &id
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []schedulelog.Record{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}))
}

// RequireBearer rejects requests without the bearer token. An empty token
// disables the check.
func RequireBearer(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
