package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
		BurstSize:         1,
	})

	assert.True(t, rl.Allow("203.0.113.9"))
	assert.True(t, rl.Allow("203.0.113.9"))
	assert.True(t, rl.Allow("203.0.113.9"))
	assert.False(t, rl.Allow("203.0.113.9"))

	// other clients have their own bucket
	assert.True(t, rl.Allow("203.0.113.10"))
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Minute,
		BurstSize:         0,
	})

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "203.0.113.9:4321"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimiterCleanupEvictsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
		BurstSize:         0,
	})

	// Each distinct key allocates a bucket; the key is attacker
	// controlled via X-Forwarded-For, so stale buckets must go away.
	for i := 0; i < 100; i++ {
		rl.Allow(fmt.Sprintf("203.0.113.%d", i))
	}
	assert.Len(t, rl.buckets, 100)

	stale := time.Now().Add(-3 * time.Minute)
	for _, b := range rl.buckets {
		b.lastUpdate = stale
	}
	rl.Allow("fresh-client")

	rl.Cleanup()

	assert.Len(t, rl.buckets, 1)
	_, kept := rl.buckets["fresh-client"]
	assert.True(t, kept)
}

func TestRateLimiterUsesForwardedFor(t *testing.T) {
	rl := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 1,
		WindowDuration:    time.Minute,
		BurstSize:         0,
	})

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:4321"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// same forwarded client from a different proxy hop is still limited
	req2 := httptest.NewRequest("POST", "/auth/login", nil)
	req2.RemoteAddr = "10.0.0.2:9999"
	req2.Header.Set("X-Forwarded-For", "203.0.113.9")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req2)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
