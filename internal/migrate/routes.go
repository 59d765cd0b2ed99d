package migrate

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hanseplat/userhub/internal/cache"
	"github.com/hanseplat/userhub/internal/conversation"
	"github.com/hanseplat/userhub/internal/result"
)

// Deps carries the collaborators the migration routes need.
type Deps struct {
	Conversations    *conversation.Store
	Cache            *cache.Cache
	MaxConversations int
	MaxAge           time.Duration
}

// RegisterRoutes mounts the batch migration and retention routes.
func RegisterRoutes(r chi.Router, engine *Engine, deps Deps) {
	r.Post("/api/migrate", handleMigrate(engine, deps))
	r.Post("/api/users/{uid}/cleanup", handleCleanup(deps))
}

type migrateRequest struct {
	UserID string            `json:"user_id"`
	Items  []json.RawMessage `json:"items"`
}

func handleMigrate(engine *Engine, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req migrateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			result.Write(w, http.StatusOK, result.Fail[Result](result.Errf(result.KindInvalid, "invalid request body")))
			return
		}
		if req.UserID == "" {
			result.Write(w, http.StatusOK, result.Fail[Result](result.Errf(result.KindInvalid, "user_id is required")))
			return
		}

		res, err := engine.MigrateRaw(r.Context(), req.UserID, req.Items)
		if err == nil {
			deps.Cache.InvalidateByPattern(req.UserID)
		}

		result.Write(w, http.StatusOK, result.Wrap(res, err))
	}
}

type cleanupResponse struct {
	UserID    string `json:"user_id"`
	Deleted   int    `json:"deleted"`
	Remaining int    `json:"remaining"`
	Mode      string `json:"mode"`
}

func handleCleanup(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := chi.URLParam(r, "uid")

		mode := r.URL.Query().Get("mode")
		if mode == "" {
			mode = "count"
		}

		var deleted int
		var err error
		switch mode {
		case "count":
			max := deps.MaxConversations
			if v := r.URL.Query().Get("max"); v != "" {
				if n, perr := strconv.Atoi(v); perr == nil && n >= 0 {
					max = n
				}
			}
			deleted, err = deps.Conversations.CleanupOld(r.Context(), uid, max)
		case "age":
			cutoff := time.Now().UTC().Add(-deps.MaxAge)
			deleted, err = deps.Conversations.CleanupOlderThan(r.Context(), uid, cutoff)
		default:
			result.Write(w, http.StatusOK, result.Fail[cleanupResponse](result.Errf(result.KindInvalid, "mode must be count or age")))
			return
		}

		var remaining int
		if err == nil {
			if deleted > 0 {
				deps.Cache.InvalidateByPattern(uid)
			}
			remaining, err = deps.Conversations.CountByUser(r.Context(), uid)
		}

		result.Write(w, http.StatusOK, result.Wrap(cleanupResponse{UserID: uid, Deleted: deleted, Remaining: remaining, Mode: mode}, err))
	}
}
