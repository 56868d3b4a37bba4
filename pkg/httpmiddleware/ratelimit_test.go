package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func limited(t *testing.T, cfg RateLimitConfig) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return RateLimit(ctx, cfg)(okHandler())
}

func send(h http.Handler, mutate func(r *http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.RemoteAddr = "192.0.2.1:4000"
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_UnderLimit(t *testing.T) {
	h := limited(t, RateLimitConfig{Max: 5, Window: time.Minute})

	for i := range 5 {
		w := send(h, nil)
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	h := limited(t, RateLimitConfig{Max: 2, Window: time.Minute})

	for range 2 {
		require.Equal(t, http.StatusOK, send(h, nil).Code)
	}

	w := send(h, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"code":429,"message":"rate limit exceeded"}`, w.Body.String())
}

func TestRateLimit_KeysAreIndependent(t *testing.T) {
	h := limited(t, RateLimitConfig{Max: 1, Window: time.Minute})

	assert.Equal(t, http.StatusOK, send(h, func(r *http.Request) { r.RemoteAddr = "10.0.0.1:1" }).Code)
	assert.Equal(t, http.StatusOK, send(h, func(r *http.Request) { r.RemoteAddr = "10.0.0.2:1" }).Code)
	assert.Equal(t, http.StatusTooManyRequests, send(h, func(r *http.Request) { r.RemoteAddr = "10.0.0.1:2" }).Code)
}

func TestRateLimit_CookieKey(t *testing.T) {
	h := limited(t, RateLimitConfig{Max: 1, Window: time.Minute, KeyFunc: CookieKey("lumiere_session")})
	withCookie := func(v string) func(r *http.Request) {
		return func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "lumiere_session", Value: v})
		}
	}

	assert.Equal(t, http.StatusOK, send(h, withCookie("a")).Code)
	assert.Equal(t, http.StatusTooManyRequests, send(h, withCookie("a")).Code)
	assert.Equal(t, http.StatusOK, send(h, withCookie("b")).Code, "same IP, other session")
	assert.Equal(t, http.StatusOK, send(h, nil).Code, "no cookie falls back to IP")
	assert.Equal(t, http.StatusTooManyRequests, send(h, nil).Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *http.Request)
		want   string
	}{
		{"remote addr", nil, "192.0.2.1"},
		{"forwarded for", func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18") }, "203.0.113.50"},
		{"real ip", func(r *http.Request) { r.Header.Set("X-Real-IP", "198.51.100.7") }, "198.51.100.7"},
		{"bare remote addr", func(r *http.Request) { r.RemoteAddr = "unix" }, "unix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.0.2.1:4000"
			if tt.mutate != nil {
				tt.mutate(req)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}

func TestRateLimiter_Evict(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 1, Window: time.Second})
	now := time.Now()
	_, _, ok := rl.allow("a", now)
	require.True(t, ok)
	_, _, ok = rl.allow("a", now)
	require.False(t, ok)

	rl.evict(now.Add(time.Second))
	assert.Equal(t, 1, rl.size())
	rl.evict(now.Add(3 * time.Second))
	assert.Equal(t, 0, rl.size())

	_, _, ok = rl.allow("a", now.Add(3*time.Second))
	assert.True(t, ok)
}
