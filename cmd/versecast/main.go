// main.go — API server entrypoint.
// Environment loaded from .env (for local dev) or injected by container.
package main

import (
	"log/slog"
	"os"

	"github.com/versecast/versecast/internal/logger"
	"github.com/versecast/versecast/internal/store"
	"github.com/versecast/versecast/pkg/telemetry"
	"github.com/versecast/versecast/services/api"
)

// version is stamped by the build (-ldflags "-X main.version=...").
var version = "dev"

func main() {
	log := logger.New(getEnv("LOG_FORMAT", "json"), getEnv("LOG_LEVEL", "info"))
	slog.SetDefault(log)

	if err := telemetry.InitSentry(os.Getenv("SENTRY_DSN"), "api", version); err != nil {
		log.Warn("sentry init failed", "error", err)
	}
	defer telemetry.Flush()

	// The catalog store. Without a DSN the service runs on an empty
	// in-memory catalog — enough for smoke tests, useless for serving.
	var srv *api.Server
	if dsn := os.Getenv("POSTGRES_URL"); dsn != "" {
		db, err := store.Connect(dsn)
		if err != nil {
			log.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		log.Info("database connected")
		srv = api.NewServer(store.NewPostgres(db), db)
	} else {
		log.Warn("POSTGRES_URL not set — serving an empty in-memory catalog (dev mode)")
		srv = api.NewServer(store.NewMemory(), nil)
	}

	if err := srv.Run(); err != nil {
		telemetry.CaptureError(err, map[string]string{"operation": "serve"})
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// getEnv returns an env var with a fallback default.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
