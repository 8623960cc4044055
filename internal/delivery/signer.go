// Package delivery turns catalog file names into time-limited signed CDN
// URLs. The signature is an HMAC-SHA256 over "{path}:{expires}" carried in
// query params, so edge nodes can validate without a shared database.
package delivery

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/versecast/versecast/pkg/audit"
)

const (
	// DefaultTTL is the signed-URL lifetime when the caller does not
	// override it: artwork, chapter downloads, stream segments.
	DefaultTTL = 10 * time.Minute
	// BulkTTL is the lifetime for bulk-delivery manifests. A whole-book
	// bundle can take hours to fetch over a constrained link, so its URLs
	// must outlive the per-object default by a wide margin.
	BulkTTL = 24 * time.Hour
)

// Signer issues signed delivery URLs for one CDN origin. A zero-value or
// unconfigured Signer (empty secret or base URL) issues empty URLs instead
// of unsigned ones — callers treat "" as "not deliverable".
type Signer struct {
	baseURL string
	secret  string
	ttl     time.Duration

	db     *sql.DB // optional, for issuance audit rows
	logger *slog.Logger
}

// NewSigner builds a Signer for the given CDN base URL and HMAC secret.
// db may be nil; issuance is then not audited.
func NewSigner(baseURL, secret string, ttl time.Duration, db *sql.DB, logger *slog.Logger) *Signer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Signer{baseURL: baseURL, secret: secret, ttl: ttl, db: db, logger: logger}
}

// Configured reports whether the signer can issue URLs.
func (s *Signer) Configured() bool {
	return s != nil && s.baseURL != "" && s.secret != ""
}

// Sign returns a signed URL for an object path under the CDN origin with the
// signer's default lifetime, or "" when the signer is unconfigured. path must
// start with "/".
func (s *Signer) Sign(path string) string {
	if s == nil {
		return ""
	}
	return s.SignWithTTL(path, s.ttl)
}

// SignWithTTL signs an object path with an explicit lifetime. Callers issuing
// bulk manifests pass BulkTTL; everything else goes through Sign.
func (s *Signer) SignWithTTL(path string, ttl time.Duration) string {
	if !s.Configured() || path == "" {
		return ""
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	expires := time.Now().Add(ttl).Unix()
	sig := s.signature(path, expires)

	q := url.Values{}
	q.Set("Expires", strconv.FormatInt(expires, 10))
	q.Set("Signature", sig)
	return s.baseURL + path + "?" + q.Encode()
}

// SignObject signs the conventional object layout "/{assetID}/{fileName}"
// and records the issuance as a best-effort audit row.
func (s *Signer) SignObject(ctx context.Context, apiKey, assetID, fileName string) string {
	signed := s.Sign("/" + assetID + "/" + fileName)
	if signed != "" && s.db != nil {
		go func() {
			err := audit.LogAction(context.Background(), s.db,
				"api_key", "", "delivery.sign", "object", "",
				map[string]interface{}{"asset_id": assetID, "file": fileName, "key": shortKey(apiKey)})
			if err != nil {
				s.logger.Debug("delivery audit write failed", "error", err)
			}
		}()
	}
	return signed
}

// SignFunc adapts the signer to the playlist builders, which expect a
// name-to-URL function bound to one asset.
func (s *Signer) SignFunc(assetID string) func(fileName string) string {
	return func(fileName string) string {
		return s.Sign("/" + assetID + "/" + fileName)
	}
}

// Validate checks a signature produced by Sign. Expired URLs fail even with
// a correct signature.
func (s *Signer) Validate(path string, expires int64, signature string) bool {
	if !s.Configured() {
		return false
	}
	if time.Now().Unix() >= expires {
		return false
	}
	expected := s.signature(path, expires)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *Signer) signature(path string, expires int64) string {
	mac := hmac.New(sha256.New, []byte(s.secret))
	fmt.Fprintf(mac, "%s:%d", path, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

// shortKey truncates an API key for audit rows so full credentials never
// land in the log table.
func shortKey(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8]
}
