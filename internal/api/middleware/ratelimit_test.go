package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gatherline/server/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitLoginTierExhausts(t *testing.T) {
	cfg := config.RateLimitConfig{PublicPerMinute: 1000, LoginPer15Minutes: 3}
	// Tier wrapper outside the limiter, as the router composes them.
	handler := WithRateLimitTierHandler(TierLogin)(RateLimit(cfg)(okHandler()))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "180", rec.Header().Get("Retry-After"))
}

func TestRateLimitIsPerClient(t *testing.T) {
	cfg := config.RateLimitConfig{PublicPerMinute: 1000, LoginPer15Minutes: 1}
	handler := WithRateLimitTierHandler(TierLogin)(RateLimit(cfg)(okHandler()))

	first := httptest.NewRequest("POST", "/auth/login", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	// Same address is now limited.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different address still has budget.
	second := httptest.NewRequest("POST", "/auth/login", nil)
	second.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitSkipsHealthEndpoints(t *testing.T) {
	cfg := config.RateLimitConfig{PublicPerMinute: 1, LoginPer15Minutes: 1}
	handler := RateLimit(cfg)(okHandler())

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/healthz", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestClientKeyIgnoresForwardedFromUntrustedPeer(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.7:4567"
	req.Header.Set("X-Forwarded-For", "198.51.100.9")

	require.Equal(t, "203.0.113.7", clientKey(req, nil))
	require.Equal(t, "198.51.100.9", clientKey(req, []string{"203.0.113.0/24"}))
}
