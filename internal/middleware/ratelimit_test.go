package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testConfig(r rate.Limit, burst int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     r,
		GeneralBurst:    burst,
		CleanupInterval: time.Minute,
	}
}

func doRequest(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/timetable", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestGeneralMiddlewareAllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(testConfig(rate.Limit(1), 2))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		if rec := doRequest(handler, "10.0.0.1:12345"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}
}

func TestGeneralMiddlewareRejectsOverBurst(t *testing.T) {
	rl := NewRateLimiter(testConfig(rate.Limit(0.001), 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	doRequest(handler, "10.0.0.1:12345")
	rec := doRequest(handler, "10.0.0.1:54321") // 同一ホスト、別ポート

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}

func TestGeneralMiddlewareIsolatesClients(t *testing.T) {
	rl := NewRateLimiter(testConfig(rate.Limit(0.001), 1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	doRequest(handler, "10.0.0.1:12345")
	if rec := doRequest(handler, "10.0.0.2:12345"); rec.Code != http.StatusOK {
		t.Errorf("other client limited: status = %d", rec.Code)
	}
	if rl.LimiterCount() != 2 {
		t.Errorf("LimiterCount = %d, want 2", rl.LimiterCount())
	}
}

func TestCleanupRemovesStaleEntries(t *testing.T) {
	rl := NewRateLimiter(testConfig(rate.Limit(1), 1))
	defer rl.Stop()

	rl.getOrCreateLimiter("10.0.0.1")
	rl.mu.Lock()
	rl.limiters["10.0.0.1"].lastAccess = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	rl.cleanup()

	if rl.LimiterCount() != 0 {
		t.Errorf("LimiterCount = %d after cleanup, want 0", rl.LimiterCount())
	}
}
