// handlers_admin.go — admin login, cache management, and audit queries.
//
// There is a single operator account configured through the environment
// (ADMIN_USER + bcrypt ADMIN_PASSWORD_HASH); key and access-group rows are
// managed by the partner portal, not this service.
package api

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/versecast/versecast/internal/ratelimit"
	"github.com/versecast/versecast/pkg/audit"
)

// adminSessionTTL bounds how long an issued admin token stays valid.
const adminSessionTTL = 12 * time.Hour

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleAdminLogin verifies operator credentials and issues a session JWT.
// POST /admin/login
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	ip := ratelimit.ClientIP(r)
	if ok, retry := s.limiter.CheckAdmin(r.Context(), ip, s.limits); !ok {
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many login attempts")
		return
	}

	var req adminLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	wantUser := os.Getenv("ADMIN_USER")
	wantHash := os.Getenv("ADMIN_PASSWORD_HASH")
	if wantUser == "" || wantHash == "" {
		writeError(w, http.StatusServiceUnavailable, "admin_disabled", "admin surface is not configured")
		return
	}

	if req.Username != wantUser ||
		bcrypt.CompareHashAndPassword([]byte(wantHash), []byte(req.Password)) != nil {
		s.logger.Warn("admin login rejected", "ip", ip)
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "username or password incorrect")
		return
	}

	token, err := s.issueAdminJWT(req.Username, adminSessionTTL)
	if err != nil {
		s.logger.Error("admin token issue failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "admin_disabled", "admin surface is not configured")
		return
	}

	if s.db != nil {
		if err := audit.LogActionWithRequest(r, s.db, "admin", "", "admin.login", "session", "", nil); err != nil {
			s.logger.Debug("audit write failed", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": time.Now().Add(adminSessionTTL).Unix(),
	})
}

// handleCacheFlush drops all cached access-group resolutions so access
// edits take effect immediately.
// POST /admin/cache/flush
func (s *Server) handleCacheFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.groups.Flush(r.Context()); err != nil {
		s.logger.Error("cache flush failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "cache flush failed")
		return
	}

	if s.db != nil {
		if err := audit.LogActionWithRequest(r, s.db, "admin", "", "cache.flush", "access_groups", "",
			map[string]interface{}{"admin": adminFromCtx(r.Context())}); err != nil {
			s.logger.Debug("audit write failed", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}

// handleAuditQuery pages through the audit trail.
// GET /admin/audit?action=&actor_id=&resource_type=&resource_id=&date_from=&date_to=&limit=&offset=
func (s *Server) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "audit_unavailable", "audit trail requires a database")
		return
	}

	q := r.URL.Query()
	filters := map[string]string{
		"actor_id":      q.Get("actor_id"),
		"action":        q.Get("action"),
		"resource_type": q.Get("resource_type"),
		"resource_id":   q.Get("resource_id"),
		"date_from":     q.Get("date_from"),
		"date_to":       q.Get("date_to"),
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	entries, total, err := audit.QueryAuditLog(r.Context(), s.db, filters, limit, offset)
	if err != nil {
		s.logger.Error("audit query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "audit query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": entries,
		"meta": map[string]int{"total": total, "limit": limit, "offset": offset},
	})
}
