package feedback

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hanseplat/userhub/internal/result"
)

// RegisterRoutes mounts the feedback API routes.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/feedback", func(r chi.Router) {
		r.Post("/", handleCreate(store))
		r.Get("/{id}", handleGet(store))
		r.Post("/{id}/resolve", handleResolve(store))
		r.Delete("/{id}", handleDelete(store))
	})
	r.Get("/api/users/{uid}/feedback", handleListByUser(store))
}

func handleCreate(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var f Feedback
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			result.Write(w, http.StatusOK, result.Fail[*Feedback](result.Errf(result.KindInvalid, "invalid request body")))
			return
		}

		created, err := store.Create(r.Context(), f)
		result.Write(w, http.StatusCreated, result.Wrap(created, err))
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		result.Write(w, http.StatusOK, result.Wrap(f, err))
	}
}

func handleListByUser(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListByUser(r.Context(), chi.URLParam(r, "uid"))
		if list == nil && err == nil {
			list = []Feedback{}
		}
		result.Write(w, http.StatusOK, result.Wrap(list, err))
	}
}

type resolveRequest struct {
	Dismiss bool `json:"dismiss"`
}

func handleResolve(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req resolveRequest
		// An empty body means plain resolve.
		_ = json.NewDecoder(r.Body).Decode(&req)

		status := StatusResolved
		if req.Dismiss {
			status = StatusDismissed
		}

		err := store.SetStatus(r.Context(), id, status)
		result.Write(w, http.StatusOK, result.Wrap(map[string]string{"id": id, "status": string(status)}, err))
	}
}

func handleDelete(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := store.Delete(r.Context(), id)
		result.Write(w, http.StatusOK, result.Wrap(map[string]string{"id": id, "status": "deleted"}, err))
	}
}
