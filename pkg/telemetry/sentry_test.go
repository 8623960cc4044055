// sentry_test.go — panic recovery and credential scrubbing. Sentry itself is
// never initialized here; every path must be safe with the SDK disabled.
package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getsentry/sentry-go"
)

func TestPanicRecoveryMiddleware_Returns500(t *testing.T) {
	h := PanicRecoveryMiddleware("api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream/x", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", w.Code)
	}
}

func TestPanicRecoveryMiddleware_PassesThrough(t *testing.T) {
	h := PanicRecoveryMiddleware("api")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusTeapot {
		t.Fatalf("middleware altered a non-panicking response: %d", w.Code)
	}
}

func TestCaptureError_NilAndDisabledSafe(t *testing.T) {
	CaptureError(nil, map[string]string{"operation": "noop"})
	CaptureError(errors.New("upstream fetch failed"), map[string]string{"operation": "upstream_fetch"})
}

func TestScrubCredentials(t *testing.T) {
	event := &sentry.Event{
		Request: &sentry.Request{
			Headers: map[string]string{
				"Authorization": "Bearer secret",
				"X-Api-Key":     "secret",
				"Accept":        "application/json",
			},
			QueryString: "key=abc123&v=4&monkey=ok",
		},
	}
	got := scrubCredentials(event)

	if got.Request.Headers["Authorization"] != "[redacted]" {
		t.Error("Authorization header not redacted")
	}
	if got.Request.Headers["X-Api-Key"] != "[redacted]" {
		t.Error("X-Api-Key header not redacted")
	}
	if got.Request.Headers["Accept"] != "application/json" {
		t.Error("harmless header mangled")
	}
	if got.Request.QueryString != "key=[redacted]&v=4&monkey=ok" {
		t.Errorf("query not scrubbed: %q", got.Request.QueryString)
	}
}

func TestRedactKeyParam(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"v=4", "v=4"},
		{"key=abc", "key=[redacted]"},
		{"key=abc&v=4", "key=[redacted]&v=4"},
		{"v=4&key=abc", "v=4&key=[redacted]"},
		{"monkey=see", "monkey=see"},
	}
	for _, c := range cases {
		if got := redactKeyParam(c.in); got != c.want {
			t.Errorf("redactKeyParam(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
