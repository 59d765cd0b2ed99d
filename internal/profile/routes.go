package profile

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hanseplat/userhub/internal/cache"
	"github.com/hanseplat/userhub/internal/perf"
	"github.com/hanseplat/userhub/internal/result"
)

// Deps carries the shared infrastructure the profile routes use. Mirror,
// when set, is called after every successful write with the new profile
// (nil on delete) so deployments can sync a central instance.
type Deps struct {
	Cache      *cache.Cache
	Monitor    *perf.Monitor
	ProfileTTL time.Duration
	Mirror     func(uid string, p *Profile)
}

func (d Deps) mirror(uid string, p *Profile) {
	if d.Mirror != nil {
		d.Mirror(uid, p)
	}
}

// RegisterRoutes mounts the user profile API routes.
func RegisterRoutes(r chi.Router, store *Store, deps Deps) {
	r.Route("/api/user-profiles", func(r chi.Router) {
		r.Get("/{uid}", handleGet(store, deps))
		r.Post("/{uid}", handleSave(store, deps))
		r.Patch("/{uid}", handleUpdate(store, deps))
		r.Delete("/{uid}", handleDelete(store, deps))
	})
}

// CacheKey is the cache signature for one user's profile.
func CacheKey(uid string) string { return "profile_" + uid }

func handleGet(store *Store, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := chi.URLParam(r, "uid")

		p, err := perf.MeasureValue(deps.Monitor, r.Context(), "profile.get",
			func(ctx context.Context) (*Profile, error) {
				return cache.Fetch(deps.Cache, CacheKey(uid), deps.ProfileTTL, func() (*Profile, error) {
					return store.Get(ctx, uid)
				})
			})

		result.Write(w, http.StatusOK, result.Wrap(p, err))
	}
}

func handleSave(store *Store, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := chi.URLParam(r, "uid")

		var p Profile
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			result.Write(w, http.StatusOK, result.Fail[*Profile](result.Errf(result.KindInvalid, "invalid request body")))
			return
		}
		// The path segment owns the identity; the body cannot rename it.
		p.UID = uid

		saved, err := perf.MeasureValue(deps.Monitor, r.Context(), "profile.save",
			func(ctx context.Context) (*Profile, error) {
				return store.Save(ctx, &p)
			})
		if err == nil {
			deps.Cache.InvalidateByPattern(uid)
			deps.mirror(uid, saved)
		}

		result.Write(w, http.StatusOK, result.Wrap(saved, err))
	}
}

func handleUpdate(store *Store, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := chi.URLParam(r, "uid")

		var u Update
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			result.Write(w, http.StatusOK, result.Fail[*Profile](result.Errf(result.KindInvalid, "invalid request body")))
			return
		}

		updated, err := perf.MeasureValue(deps.Monitor, r.Context(), "profile.update",
			func(ctx context.Context) (*Profile, error) {
				return store.ApplyUpdate(ctx, uid, u)
			})
		if err == nil {
			deps.Cache.InvalidateByPattern(uid)
			deps.mirror(uid, updated)
		}

		result.Write(w, http.StatusOK, result.Wrap(updated, err))
	}
}

func handleDelete(store *Store, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := chi.URLParam(r, "uid")

		err := deps.Monitor.Measure(r.Context(), "profile.delete", func(ctx context.Context) error {
			return store.Delete(ctx, uid)
		})
		if err == nil {
			deps.Cache.InvalidateByPattern(uid)
			deps.mirror(uid, nil)
		}

		result.Write(w, http.StatusOK, result.Wrap(map[string]string{"uid": uid, "status": "deleted"}, err))
	}
}
