package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(10, time.Minute, discardLogger())
	defer limiter.Stop()

	assert.Equal(t, 10, limiter.burst)
	assert.Equal(t, time.Minute, limiter.window)
	assert.InDelta(t, 10.0/60.0, float64(limiter.limit), 1e-9)

	// Некорректные параметры заменяются значениями по умолчанию
	fallback := NewRateLimiter(0, 0, discardLogger())
	defer fallback.Stop()
	assert.Equal(t, 1, fallback.burst)
	assert.Equal(t, time.Minute, fallback.window)
}

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute, discardLogger())
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("10.0.0.1"), "request %d should be allowed", i+1)
	}
	assert.False(t, limiter.Allow("10.0.0.1"))

	// Другой клиент имеет свой bucket
	assert.True(t, limiter.Allow("10.0.0.2"))
}

func TestRateLimiter_RejectedRequestDoesNotConsumeToken(t *testing.T) {
	limiter := NewRateLimiter(1, time.Second, discardLogger())
	defer limiter.Stop()

	now := time.Now()
	assert.Equal(t, time.Duration(0), limiter.reserve("k", now))

	first := limiter.reserve("k", now)
	second := limiter.reserve("k", now)
	assert.Greater(t, int64(first), int64(0))
	// Отклоненные попытки не отодвигают следующий токен
	assert.Equal(t, first, second)

	assert.Equal(t, time.Duration(0), limiter.reserve("k", now.Add(time.Second)))
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	limiter := NewRateLimiter(5, 50*time.Millisecond, discardLogger())
	defer limiter.Stop()

	limiter.Allow("idle")
	limiter.evictIdle(time.Now().Add(time.Second))

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Empty(t, limiter.clients)
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute, discardLogger())
	limiter.Stop()
	assert.NotPanics(t, limiter.Stop)
}

func TestRateLimiter_Middleware(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute, discardLogger())
	defer limiter.Stop()

	handler := limiter.Middleware(okHandler())

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/sync/push", nil)
		req.RemoteAddr = "192.168.1.10:54321"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do().Code)
	assert.Equal(t, http.StatusOK, do().Code)

	w := do()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"rate limit exceeded, please try again later"}`, w.Body.String())

	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retry, 1)
	assert.LessOrEqual(t, retry, 31)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{name: "remote addr with port", remoteAddr: "192.168.1.1:12345", want: "192.168.1.1"},
		{name: "remote addr without port", remoteAddr: "192.168.1.1", want: "192.168.1.1"},
		{name: "ipv6 remote addr", remoteAddr: "[::1]:8080", want: "::1"},
		{
			name:       "X-Forwarded-For first address",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"},
			remoteAddr: "10.0.0.2:1",
			want:       "203.0.113.1",
		},
		{
			name:       "X-Real-IP",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			remoteAddr: "10.0.0.2:1",
			want:       "198.51.100.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
