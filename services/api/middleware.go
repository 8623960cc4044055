// middleware.go — API key authentication and admin JWT middleware.
//
// Public routes take the key either as ?key= (the form every client SDK
// uses) or as "Authorization: Bearer {key}". The key's access groups are
// resolved once per request — geo defaults included — and injected into the
// request context so handlers never re-resolve.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/versecast/versecast/internal/metrics"
)

// contextKey is a typed key for request context values.
type contextKey string

const (
	contextKeyAPIKey  contextKey = "api_key"
	contextKeyGroups  contextKey = "access_groups"
	contextKeyVersion contextKey = "api_version"
	contextKeyAdmin   contextKey = "admin_subject"
)

// extractAPIKey returns the key from the query string or bearer header.
func extractAPIKey(r *http.Request) string {
	if k := r.URL.Query().Get("key"); k != "" {
		return k
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// geoHints returns the caller's country and continent codes from the CDN
// geo headers. Empty when the request did not come through the edge.
func geoHints(r *http.Request) (country, continent string) {
	country = r.Header.Get("CF-IPCountry")
	if country == "" {
		country = r.Header.Get("X-Geo-Country")
	}
	continent = r.Header.Get("X-Geo-Continent")
	return country, continent
}

// apiVersion parses the ?v= param. Defaults to 4; versions 1-2 get the
// legacy ID resolution behavior.
func apiVersion(r *http.Request) int {
	v, err := strconv.Atoi(r.URL.Query().Get("v"))
	if err != nil || v < 1 {
		return 4
	}
	return v
}

// requireAPIKey authenticates the request, enforces the per-key rate limit,
// resolves access groups, and injects everything into the context.
//
// A key with no groups is still authenticated — it simply sees nothing.
// Only a missing key is a 401.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractAPIKey(r)
		if key == "" {
			metrics.AccessDenied.WithLabelValues("missing_key").Inc()
			writeError(w, http.StatusUnauthorized, "missing_key",
				"an API key is required (?key= or Authorization: Bearer)")
			return
		}

		if ok, retry := s.limiter.CheckAPI(r.Context(), key, s.limits); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			writeError(w, http.StatusTooManyRequests, "rate_limited",
				"API rate limit exceeded")
			return
		}

		country, continent := geoHints(r)
		groups, err := s.groups.Groups(r.Context(), key, country, continent)
		if err != nil {
			s.logger.Error("access group resolution failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error",
				"could not resolve access")
			return
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, contextKeyAPIKey, key)
		ctx = context.WithValue(ctx, contextKeyGroups, groups)
		ctx = context.WithValue(ctx, contextKeyVersion, apiVersion(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// apiKeyFromCtx extracts the authenticated API key from the context.
func apiKeyFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(contextKeyAPIKey).(string)
	return v
}

// groupsFromCtx extracts the resolved access groups from the context.
func groupsFromCtx(ctx context.Context) []int64 {
	v, _ := ctx.Value(contextKeyGroups).([]int64)
	return v
}

// versionFromCtx extracts the API version from the context.
func versionFromCtx(ctx context.Context) int {
	if v, ok := ctx.Value(contextKeyVersion).(int); ok {
		return v
	}
	return 4
}

// adminClaims are the claims carried by admin session tokens.
type adminClaims struct {
	jwt.RegisteredClaims
}

// issueAdminJWT mints an HS256 session token for a logged-in admin.
func (s *Server) issueAdminJWT(subject string, ttl time.Duration) (string, error) {
	if len(s.jwtSecret) == 0 {
		return "", errors.New("ADMIN_JWT_SECRET not configured")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(s.jwtSecret)
}

// validateAdminJWT parses and validates an admin session token.
func (s *Server) validateAdminJWT(tokenStr string) (*adminClaims, error) {
	if len(s.jwtSecret) == 0 {
		return nil, errors.New("ADMIN_JWT_SECRET not configured")
	}
	token, err := jwt.ParseWithClaims(tokenStr, &adminClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method: expected HS256")
			}
			return s.jwtSecret, nil
		},
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*adminClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, errors.New("missing subject claim")
	}
	return claims, nil
}

// requireAdminJWT guards the admin surface. No dev-mode bypass: an
// unconfigured secret means the admin surface is off.
func (s *Server) requireAdminJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing_token",
				"Authorization: Bearer {token} header is required")
			return
		}

		if ok, retry := s.limiter.CheckAdmin(r.Context(), header, s.limits); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			writeError(w, http.StatusTooManyRequests, "rate_limited",
				"admin rate limit exceeded")
			return
		}

		claims, err := s.validateAdminJWT(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token", err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyAdmin, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminFromCtx extracts the admin subject from the context.
func adminFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(contextKeyAdmin).(string)
	return v
}
