package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiterWindow(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 3})
	defer rl.Stop()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Fatal("fourth request should be limited")
	}
	if !rl.Allow("5.6.7.8") {
		t.Fatal("other clients are independent")
	}
	if rl.Hits() != 1 {
		t.Fatalf("hits = %d", rl.Hits())
	}

	now = now.Add(time.Minute)
	if !rl.Allow("1.2.3.4") {
		t.Fatal("new window should reset the counter")
	}
}

func TestLimiterCleanup(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	defer rl.Stop()
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.Allow("a")
	now = now.Add(11 * time.Minute)
	rl.Allow("b")
	rl.cleanupStaleEntries()
	if rl.ActiveClients() != 1 {
		t.Fatalf("expected stale client to be dropped, have %d", rl.ActiveClients())
	}
}

func TestMiddlewareOnlyLimitsListedMethods(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1})
	defer rl.Stop()

	h := rl.Middleware(
		func(*http.Request) string { return "ip" },
		func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
		http.MethodPost,
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := func(method string) int {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(method, "/transactions", nil))
		return rr.Code
	}

	if c := codes(http.MethodPost); c != http.StatusOK {
		t.Fatalf("first POST = %d", c)
	}
	if c := codes(http.MethodPost); c != http.StatusTooManyRequests {
		t.Fatalf("second POST = %d", c)
	}
	for i := 0; i < 5; i++ {
		if c := codes(http.MethodGet); c != http.StatusOK {
			t.Fatalf("GET should not be limited, got %d", c)
		}
	}
}
