package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hanseplat/userhub/internal/cache"
	"github.com/hanseplat/userhub/internal/perf"
	"github.com/hanseplat/userhub/internal/result"
)

// Deps carries the shared infrastructure the conversation routes use.
type Deps struct {
	Cache   *cache.Cache
	Monitor *perf.Monitor
	ListTTL time.Duration
}

// RegisterRoutes mounts the conversation API routes.
func RegisterRoutes(r chi.Router, store *Store, deps Deps) {
	r.Get("/api/users/{uid}/conversations", handleListByUser(store, deps))
	r.Route("/api/conversations", func(r chi.Router) {
		r.Post("/", handleCreate(store, deps))
		r.Get("/{id}", handleGet(store, deps))
		r.Delete("/{id}", handleDelete(store, deps))
		r.Post("/{id}/messages", handleAppendMessage(store, deps))
	})
}

// listCacheKey is the cache signature for one page of a user's conversations.
func listCacheKey(uid string, page Page) string {
	return fmt.Sprintf("conversations_%s_%d_%d", uid, page.Limit, page.Offset)
}

func handleListByUser(store *Store, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := chi.URLParam(r, "uid")

		page := Page{Limit: 20}
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				page.Limit = n
			}
		}
		if v := r.URL.Query().Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				page.Offset = n
			}
		}

		list, err := perf.MeasureValue(deps.Monitor, r.Context(), "conversation.list",
			func(ctx context.Context) ([]Conversation, error) {
				return cache.Fetch(deps.Cache, listCacheKey(uid, page), deps.ListTTL, func() ([]Conversation, error) {
					return store.ListByUser(ctx, uid, page)
				})
			})
		if list == nil && err == nil {
			list = []Conversation{}
		}

		result.Write(w, http.StatusOK, result.Wrap(list, err))
	}
}

func handleCreate(store *Store, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c Conversation
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			result.Write(w, http.StatusOK, result.Fail[*Conversation](result.Errf(result.KindInvalid, "invalid request body")))
			return
		}

		saved, err := perf.MeasureValue(deps.Monitor, r.Context(), "conversation.save",
			func(ctx context.Context) (*Conversation, error) {
				return store.Save(ctx, &c)
			})
		if err == nil {
			deps.Cache.InvalidateByPattern(saved.UserID)
		}

		result.Write(w, http.StatusCreated, result.Wrap(saved, err))
	}
}

func handleGet(store *Store, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		c, err := perf.MeasureValue(deps.Monitor, r.Context(), "conversation.get",
			func(ctx context.Context) (*Conversation, error) {
				return store.Get(ctx, id)
			})

		result.Write(w, http.StatusOK, result.Wrap(c, err))
	}
}

func handleDelete(store *Store, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		// Look up the owner before the row disappears so the cache prefix
		// can be invalidated.
		var owner string
		if c, err := store.Get(r.Context(), id); err == nil {
			owner = c.UserID
		}

		err := deps.Monitor.Measure(r.Context(), "conversation.delete", func(ctx context.Context) error {
			return store.Delete(ctx, id)
		})
		if err == nil && owner != "" {
			deps.Cache.InvalidateByPattern(owner)
		}

		result.Write(w, http.StatusOK, result.Wrap(map[string]string{"id": id, "status": "deleted"}, err))
	}
}

type appendRequest struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func handleAppendMessage(store *Store, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req appendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			result.Write(w, http.StatusOK, result.Fail[*Message](result.Errf(result.KindInvalid, "invalid request body")))
			return
		}
		if req.Content == "" {
			result.Write(w, http.StatusOK, result.Fail[*Message](result.Errf(result.KindInvalid, "content is required")))
			return
		}
		if req.Role == "" {
			req.Role = RoleUser
		}

		m, err := perf.MeasureValue(deps.Monitor, r.Context(), "conversation.append",
			func(ctx context.Context) (*Message, error) {
				return store.AppendMessage(ctx, id, req.Role, req.Content)
			})
		if err == nil {
			if c, gerr := store.Get(r.Context(), id); gerr == nil {
				deps.Cache.InvalidateByPattern(c.UserID)
			}
		}

		result.Write(w, http.StatusCreated, result.Wrap(m, err))
	}
}
