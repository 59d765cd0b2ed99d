// Package server wires the stores, cache, and supporting services into one
// HTTP surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hanseplat/userhub/internal/analytics"
	"github.com/hanseplat/userhub/internal/auth"
	"github.com/hanseplat/userhub/internal/cache"
	"github.com/hanseplat/userhub/internal/config"
	"github.com/hanseplat/userhub/internal/conversation"
	"github.com/hanseplat/userhub/internal/db"
	"github.com/hanseplat/userhub/internal/debounce"
	"github.com/hanseplat/userhub/internal/feedback"
	"github.com/hanseplat/userhub/internal/migrate"
	"github.com/hanseplat/userhub/internal/perf"
	"github.com/hanseplat/userhub/internal/profile"
	"github.com/hanseplat/userhub/internal/realtime"
	"github.com/hanseplat/userhub/internal/result"
	"github.com/hanseplat/userhub/internal/services"
)

// Server owns the router and every shared component behind it.
type Server struct {
	cfg *config.Config
	db  *db.DB
	log *zap.Logger

	cache     *cache.Cache
	monitor   *perf.Monitor
	debouncer *debounce.Debouncer
	hub       *realtime.Hub

	profiles      *profile.Store
	conversations *conversation.Store
	feedbacks     *feedback.Store
	engine        *migrate.Engine
	events        *analytics.Store
	sessions      *auth.Sessions

	svc    *services.Client
	remote *services.RemoteProfileStore

	router     chi.Router
	httpServer *http.Server
}

// New assembles a server from config. Stores, cache, monitor, and hub are
// constructed here once and shared by every route.
func New(cfg *config.Config, database *db.DB, log *zap.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		db:        database,
		log:       log,
		cache:     cache.New(log.Named("cache")),
		monitor:   perf.New(log.Named("perf")),
		debouncer: debounce.New(log.Named("debounce")),
		hub:       realtime.NewHub(log.Named("realtime"), cfg.Realtime),
		sessions:  auth.NewSessions(database),
		events:    analytics.NewStore(database),
		engine:    migrate.NewEngine(database, log.Named("migrate")),
	}

	s.profiles = profile.NewStore(database, s.hub, true, log.Named("profile"))
	s.conversations = conversation.NewStore(database, s.hub, true, log.Named("conversation"))
	s.feedbacks = feedback.NewStore(database, true, log.Named("feedback"))

	if cfg.CloudSync.Enabled && cfg.CloudSync.BaseURL != "" {
		s.svc = services.NewClient(cfg.Services, log.Named("services"))
		s.remote = services.NewRemoteProfileStore(s.svc, cfg.CloudSync.BaseURL)
	}

	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if s.cfg.AuthRequired {
		authenticator := auth.NewAuthenticator(s.cfg.JWTSecret)
		r.Use(guardWrites(auth.Middleware(authenticator, s.sessions, s.log.Named("auth"))))
	}

	r.Get("/healthz", handleHealth(s.db))
	r.Get("/api/metrics", handleMetrics(s))

	profileTTL := time.Duration(s.cfg.Cache.ProfileTTLMinutes) * time.Minute
	listTTL := time.Duration(s.cfg.Cache.ConversationTTLMinutes) * time.Minute

	profile.RegisterRoutes(r, s.profiles, profile.Deps{
		Cache:      s.cache,
		Monitor:    s.monitor,
		ProfileTTL: profileTTL,
		Mirror:     s.mirrorProfile(),
	})
	conversation.RegisterRoutes(r, s.conversations, conversation.Deps{
		Cache:   s.cache,
		Monitor: s.monitor,
		ListTTL: listTTL,
	})
	feedback.RegisterRoutes(r, s.feedbacks)
	migrate.RegisterRoutes(r, s.engine, migrate.Deps{
		Conversations:    s.conversations,
		Cache:            s.cache,
		MaxConversations: s.cfg.Retention.MaxConversations,
		MaxAge:           time.Duration(s.cfg.Retention.MaxAgeDays) * 24 * time.Hour,
	})
	analytics.RegisterRoutes(r, s.events)
	realtime.RegisterRoutes(r, s.hub, s.log.Named("ws"))

	return r
}

// mirrorProfile returns the debounced cloud-sync hook, or nil when the
// deployment is local-only. Rapid successive edits to one profile coalesce
// into a single remote write.
func (s *Server) mirrorProfile() func(uid string, p *profile.Profile) {
	if s.remote == nil {
		return nil
	}
	delay := time.Duration(s.cfg.CloudSync.DebounceMS) * time.Millisecond
	return func(uid string, p *profile.Profile) {
		s.debouncer.Debounce("profile_sync_"+uid, delay, func(ctx context.Context) error {
			if p == nil {
				return s.remote.Delete(ctx, uid)
			}
			return s.remote.Save(ctx, p)
		})
	}
}

// guardWrites applies mw to mutating requests only; reads stay open.
func guardWrites(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		guarded := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				guarded.ServeHTTP(w, r)
			}
		})
	}
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)))
		})
	}
}

func handleHealth(database *db.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := database.PingContext(r.Context()); err != nil {
			result.Write(w, http.StatusOK, result.Fail[map[string]string](result.Errf(result.KindTransient, "database unreachable")))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}
}

type metricsResponse struct {
	Operations     map[string]perf.Metric `json:"operations"`
	CacheEntries   int                    `json:"cache_entries"`
	PendingWrites  int                    `json:"pending_writes"`
	ActiveSessions int                    `json:"active_sessions"`
	SyncBreaker    string                 `json:"sync_breaker,omitempty"`
}

func handleMetrics(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := metricsResponse{
			Operations:    s.monitor.Metrics(),
			CacheEntries:  s.cache.Len(),
			PendingWrites: s.debouncer.Pending(),
		}
		if n, err := s.sessions.ActiveCount(r.Context()); err == nil {
			resp.ActiveSessions = n
		}
		if s.svc != nil {
			resp.SyncBreaker = string(s.svc.BreakerState("profile-sync"))
		}
		result.Write(w, http.StatusOK, result.Ok(resp))
	}
}

// Router exposes the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Hub exposes the realtime hub.
func (s *Server) Hub() *realtime.Hub { return s.hub }

// Start begins listening on the configured port and blocks until shutdown.
// A graceful Shutdown is not an error.
func (s *Server) Start() error {
	s.log.Info("userhub listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RunRetentionSweeps trims old conversations and expired sessions on the
// configured interval until ctx is cancelled.
func (s *Server) RunRetentionSweeps(ctx context.Context) {
	interval := time.Duration(s.cfg.Retention.SweepIntervalMinutes) * time.Minute
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.conversations.SweepAll(ctx, s.cfg.Retention.MaxConversations,
				time.Duration(s.cfg.Retention.MaxAgeDays)*24*time.Hour)
			if err != nil {
				s.log.Warn("retention sweep", zap.Error(err))
			} else if deleted > 0 {
				s.log.Info("retention sweep", zap.Int("conversations_deleted", deleted))
			}

			if n, err := s.sessions.DeleteExpired(ctx); err != nil {
				s.log.Warn("session sweep", zap.Error(err))
			} else if n > 0 {
				s.log.Info("session sweep", zap.Int("sessions_deleted", n))
			}
		}
	}
}

// Shutdown stops the HTTP server and flushes pending debounced writes by
// cancelling them; coalesced writes that never fired are lost, matching
// fire-and-forget semantics.
func (s *Server) Shutdown(ctx context.Context) error {
	s.debouncer.CancelAll()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
