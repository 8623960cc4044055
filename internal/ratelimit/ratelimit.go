// Package ratelimit provides Redis-backed rate limiting keyed by API key.
// When Redis is unavailable (nil store), all rate limits are disabled —
// requests pass. This keeps dev/test environments working without Redis.
// API keys are SHA-256 hashed before use as Redis keys so raw credentials
// never appear in the cache.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Store is the counter surface the limiter needs: fixed-window counting is
// INCR + EXPIRE, Retry-After comes from TTL, and support resets use Del.
// In production this is backed by go-redis; in tests by an in-memory map.
type Store interface {
	// Incr atomically increments a counter key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// Expire sets the TTL on a key (only if TTL not already set by the incr).
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// TTL returns the remaining time-to-live on a key. Returns 0 or negative if expired/missing.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Del removes one or more keys.
	Del(ctx context.Context, keys ...string) error
}

// Limiter performs rate limit checks against a Store.
type Limiter struct {
	store Store
}

// New creates a Limiter backed by the given Store.
// If store is nil, the Limiter is a no-op that always allows requests.
func New(store Store) *Limiter {
	return &Limiter{store: store}
}

// Config holds the per-surface rate limit settings, applied by the HTTP
// middleware layer.
type Config struct {
	// Catalog endpoints: fileset and bible metadata reads.
	APIRate   int
	APIWindow time.Duration

	// Delivery endpoints: playlist and download URL issuance. Playlists
	// are requested once per playback session, so this can sit well below
	// the catalog rate.
	DeliveryRate   int
	DeliveryWindow time.Duration

	// Admin endpoints: key and access-group management.
	AdminRate   int
	AdminWindow time.Duration
}

// DefaultLimits returns the production rate limit configuration.
//
//	API:      120 requests per minute per key
//	Delivery:  60 requests per minute per key
//	Admin:     30 requests per minute per admin
func DefaultLimits() Config {
	return Config{
		APIRate:        120,
		APIWindow:      time.Minute,
		DeliveryRate:   60,
		DeliveryWindow: time.Minute,
		AdminRate:      30,
		AdminWindow:    time.Minute,
	}
}

// CheckAPI enforces the catalog rate limit for an API key.
// Returns (allowed, retryAfterSecs).
func (l *Limiter) CheckAPI(ctx context.Context, apiKey string, cfg Config) (bool, int) {
	return l.check(ctx, fmt.Sprintf("rl:api:%s", hashKey(apiKey)), cfg.APIRate, int(cfg.APIWindow.Seconds()))
}

// CheckDelivery enforces the delivery rate limit for an API key.
func (l *Limiter) CheckDelivery(ctx context.Context, apiKey string, cfg Config) (bool, int) {
	return l.check(ctx, fmt.Sprintf("rl:delivery:%s", hashKey(apiKey)), cfg.DeliveryRate, int(cfg.DeliveryWindow.Seconds()))
}

// CheckAdmin enforces the admin rate limit for an admin identity or IP.
func (l *Limiter) CheckAdmin(ctx context.Context, key string, cfg Config) (bool, int) {
	return l.check(ctx, fmt.Sprintf("rl:admin:%s", hashKey(key)), cfg.AdminRate, int(cfg.AdminWindow.Seconds()))
}

// Reset clears all counters for an API key. Used by support tooling after a
// key's limits are raised.
func (l *Limiter) Reset(ctx context.Context, apiKey string) {
	if l.store == nil {
		return
	}
	h := hashKey(apiKey)
	l.store.Del(ctx,
		fmt.Sprintf("rl:api:%s", h),
		fmt.Sprintf("rl:delivery:%s", h),
	)
}

// ClientIP extracts the real client IP from a request, handling reverse proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	addr := r.RemoteAddr
	if i := strings.LastIndex(addr, ":"); i > 0 {
		return addr[:i]
	}
	return addr
}

// check is the generic increment-and-check against a Redis key.
// Returns (allowed, retryAfterSecs). If store is nil, always returns (true, 0).
func (l *Limiter) check(ctx context.Context, key string, max int, ttlSecs int) (bool, int) {
	if l.store == nil {
		return true, 0
	}

	count, err := l.store.Incr(ctx, key)
	if err != nil {
		// Redis error — fail open (allow request, don't block on infra issues)
		return true, 0
	}

	if count == 1 {
		l.store.Expire(ctx, key, time.Duration(ttlSecs)*time.Second)
	}

	if count > int64(max) {
		ttl, _ := l.store.TTL(ctx, key)
		retry := int(ttl.Seconds())
		if retry < 1 {
			retry = ttlSecs
		}
		return false, retry
	}

	return true, 0
}

// hashKey produces a 16-hex-char hash of an API key for use as a Redis key
// suffix. Good enough for key uniqueness without storing credentials.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return fmt.Sprintf("%x", sum[:8])
}
