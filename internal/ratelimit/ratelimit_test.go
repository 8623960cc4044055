// ratelimit_test.go — limiter behavior against an in-memory store fake.
package ratelimit

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// memStore is a minimal in-memory Store for tests. TTLs are recorded but
// never enforced; window expiry is Redis's job, not the limiter's.
type memStore struct {
	mu     sync.Mutex
	counts map[string]int64
	ttls   map[string]time.Duration
}

func newMemStore() *memStore {
	return &memStore{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

// The limiter only counts: anything beyond Incr/Expire/TTL/Del on Store is
// surface creep, and this fake is deliberately exactly that big.
var _ Store = (*memStore)(nil)

func (s *memStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[key]++
	return s.counts[key], nil
}

func (s *memStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttls[key] = ttl
	return nil
}

func (s *memStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttls[key], nil
}

func (s *memStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.counts, k)
	}
	return nil
}

func TestCheckAPI_EnforcesLimit(t *testing.T) {
	l := New(newMemStore())
	cfg := Config{APIRate: 3, APIWindow: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if ok, _ := l.CheckAPI(ctx, "key-1", cfg); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	ok, retry := l.CheckAPI(ctx, "key-1", cfg)
	if ok {
		t.Error("4th request should be rejected")
	}
	if retry < 1 {
		t.Errorf("retry-after should be positive, got %d", retry)
	}
}

func TestCheckAPI_KeysIsolated(t *testing.T) {
	l := New(newMemStore())
	cfg := Config{APIRate: 1, APIWindow: time.Minute}
	ctx := context.Background()

	l.CheckAPI(ctx, "key-a", cfg)
	if ok, _ := l.CheckAPI(ctx, "key-b", cfg); !ok {
		t.Error("key-b must not share key-a's counter")
	}
}

func TestNilStore_AlwaysAllows(t *testing.T) {
	l := New(nil)
	cfg := DefaultLimits()
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		if ok, _ := l.CheckDelivery(ctx, "key-1", cfg); !ok {
			t.Fatal("nil store must never reject")
		}
	}
}

func TestReset_ClearsCounters(t *testing.T) {
	l := New(newMemStore())
	cfg := Config{APIRate: 1, APIWindow: time.Minute}
	ctx := context.Background()

	l.CheckAPI(ctx, "key-1", cfg)
	if ok, _ := l.CheckAPI(ctx, "key-1", cfg); ok {
		t.Fatal("limit should be hit before reset")
	}
	l.Reset(ctx, "key-1")
	if ok, _ := l.CheckAPI(ctx, "key-1", cfg); !ok {
		t.Error("reset should clear the counter")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	if got := ClientIP(r); got != "10.0.0.1" {
		t.Errorf("RemoteAddr parsing: got %q", got)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := ClientIP(r); got != "203.0.113.7" {
		t.Errorf("X-Forwarded-For should win: got %q", got)
	}
}
