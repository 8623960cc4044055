// server.go — API service: server struct, dependency wiring, route registration.
// Serves the public catalog/delivery surface (fileset metadata, chapter
// aggregation, HLS playlists, download URLs) and the admin surface (login,
// cache flush, audit queries). Port: 8080 (proxied via Nginx).
package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/versecast/versecast/internal/access"
	"github.com/versecast/versecast/internal/delivery"
	"github.com/versecast/versecast/internal/fileset"
	"github.com/versecast/versecast/internal/metrics"
	"github.com/versecast/versecast/internal/ratelimit"
	"github.com/versecast/versecast/internal/store"
	"github.com/versecast/versecast/internal/upstream"
	"github.com/versecast/versecast/pkg/telemetry"
)

// Server holds all shared dependencies for the API service.
type Server struct {
	store    store.Store
	db       *sql.DB // optional; audit trail queries only
	rdb      *redis.Client
	signer   *delivery.Signer
	provider *upstream.Client
	groups   *access.Resolver
	filter   *access.Filter
	ids      *fileset.Resolver
	limiter  *ratelimit.Limiter
	limits   ratelimit.Config
	logger   *slog.Logger

	jwtSecret []byte
	port      string
}

// NewServer creates a Server wired from the environment. st is the catalog
// store; db may be nil (audit queries disabled), as may Redis (caching and
// rate limiting degrade gracefully).
func NewServer(st store.Store, db *sql.DB) *Server {
	s := &Server{
		store:     st,
		db:        db,
		logger:    slog.New(slog.NewJSONHandler(os.Stdout, nil)),
		port:      getEnv("API_PORT", "8080"),
		jwtSecret: []byte(os.Getenv("ADMIN_JWT_SECRET")),
		limits:    ratelimit.DefaultLimits(),
	}

	// Redis is optional — group caching and rate limiting degrade
	// gracefully without it.
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		if opt, err := redis.ParseURL(redisURL); err == nil {
			s.rdb = redis.NewClient(opt)
		}
	}

	s.signer = delivery.NewSigner(
		os.Getenv("CDN_BASE_URL"),
		os.Getenv("CDN_HMAC_SECRET"),
		envDuration("SIGNED_URL_TTL", delivery.DefaultTTL),
		db, s.logger,
	)
	s.provider = upstream.New(envDuration("UPSTREAM_TIMEOUT", 8*time.Second))
	s.groups = access.NewResolver(st, s.rdb, s.logger)
	s.filter = access.NewFilter(st)
	s.ids = fileset.NewResolver(st)
	if s.rdb != nil {
		s.limiter = ratelimit.New(ratelimit.NewRedisStore(s.rdb))
	} else {
		s.limiter = ratelimit.New(nil)
	}
	return s
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	s.logger.Info("api service starting", "port", s.port)
	return http.ListenAndServe(":"+s.port, s.Routes())
}

// Routes builds and returns the chi router with all endpoints registered.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(telemetry.PanicRecoveryMiddleware("api"))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(func(next http.Handler) http.Handler { return metrics.Middleware("api", next) })

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Public catalog + delivery surface. Every route requires an API key.
	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)

		r.Get("/bibles/{bible_id}", s.handleBibleShow)
		r.Get("/bibles/{bible_id}/book/{book_id}/{chapter}", s.handleBibleChapter)

		r.Get("/bibles/filesets/{fileset_id}", s.handleFilesetShow)

		r.Get("/download/list", s.handleDownloadList)
		r.Get("/download/{fileset_id}/{book_id}/{chapter}", s.handleDownload)

		r.Get("/stream/{fileset_id}/{book_id}/{chapter}/playlist.m3u8", s.handleStreamMaster)
		r.Get("/stream/{fileset_id}/{book_id}/{chapter}/{variant}", s.handleStreamMedia)
		r.Get("/stream/{fileset_id}/{book_id}", s.handleStreamBook)
	})

	// Admin surface.
	r.Post("/admin/login", s.handleAdminLogin)
	r.Group(func(r chi.Router) {
		r.Use(s.requireAdminJWT)
		r.Post("/admin/cache/flush", s.handleCacheFlush)
		r.Get("/admin/audit", s.handleAuditQuery)
	})

	return r
}

// handleHealth returns service liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "versecast-api",
	})
}

// getEnv returns the value of key, or fallback if not set.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envDuration parses key as a Go duration, or returns fallback.
func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
