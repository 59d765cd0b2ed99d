package analytics

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hanseplat/userhub/internal/result"
)

// RegisterRoutes mounts analytics endpoints under /api/analytics.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/analytics", func(r chi.Router) {
		r.Post("/events", handleRecord(store))
		r.Get("/events", handleList(store))
		r.Get("/counts", handleCounts(store))
	})
}

func handleRecord(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var e Event
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			result.Write(w, http.StatusOK, result.Fail[Event](result.Errf(result.KindInvalid, "invalid request body")))
			return
		}
		if e.Type == "" {
			result.Write(w, http.StatusOK, result.Fail[Event](result.Errf(result.KindInvalid, "type is required")))
			return
		}

		recorded, err := store.Record(r.Context(), e)
		result.Write(w, http.StatusCreated, result.Wrap(recorded, err))
	}
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := Filter{
			UserID: q.Get("user"),
			Type:   q.Get("type"),
			Limit:  100,
		}
		if v := q.Get("since"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				filter.Since = &t
			}
		}
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				filter.Limit = n
			}
		}
		if v := q.Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				filter.Offset = n
			}
		}

		events, err := store.List(r.Context(), filter)
		if events == nil {
			events = []Event{}
		}
		result.Write(w, http.StatusOK, result.Wrap(events, err))
	}
}

func handleCounts(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since := time.Now().UTC().Add(-24 * time.Hour)
		if v := r.URL.Query().Get("since"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				result.Write(w, http.StatusOK, result.Fail[map[string]int](result.Errf(result.KindInvalid, "since must be RFC3339")))
				return
			}
			since = t
		}

		counts, err := store.CountsByType(r.Context(), since)
		result.Write(w, http.StatusOK, result.Wrap(counts, err))
	}
}
