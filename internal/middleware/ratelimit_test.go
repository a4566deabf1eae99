package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ascii-arena/internal/metrics"

	"github.com/go-redis/redismock/v8"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryLimiter(t *testing.T, cfg RateLimitConfig, clock *time.Time) *MemoryLimiter {
	t.Helper()
	rl := NewMemoryLimiter(cfg)
	rl.now = func() time.Time { return *clock }
	t.Cleanup(rl.Stop)
	return rl
}

func TestMemoryLimiter(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	start := clock
	rl := newTestMemoryLimiter(t, RateLimitConfig{MaxRequests: 3, Window: time.Minute}, &clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := rl.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 2-i, d.Remaining)
		clock = clock.Add(10 * time.Second)
	}

	// The oldest hit leaves the window a full minute after it was made.
	d, err := rl.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, start.Add(time.Minute), d.ResetAt)

	// Other clients have their own window.
	d, _ = rl.Allow(ctx, "5.6.7.8")
	assert.True(t, d.Allowed)

	clock = start.Add(59 * time.Second)
	d, _ = rl.Allow(ctx, "1.2.3.4")
	assert.False(t, d.Allowed)

	clock = start.Add(time.Minute)
	d, _ = rl.Allow(ctx, "1.2.3.4")
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}

func TestMemoryLimiterHoldsWindowUnderSteadyTraffic(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	start := clock
	rl := newTestMemoryLimiter(t, VoteLimit, &clock)

	var accepted []time.Time
	for clock.Before(start.Add(3 * VoteLimit.Window)) {
		d, err := rl.Allow(context.Background(), "203.0.113.9")
		require.NoError(t, err)
		if d.Allowed {
			accepted = append(accepted, clock)
		}
		clock = clock.Add(500 * time.Millisecond)
	}

	// No 60s window may hold more than the limit.
	for i, at := range accepted {
		inWindow := 0
		for _, other := range accepted[:i+1] {
			if other.After(at.Add(-VoteLimit.Window)) {
				inWindow++
			}
		}
		assert.LessOrEqual(t, inWindow, VoteLimit.MaxRequests, "window ending %s", at.Sub(start))
	}
	assert.Len(t, accepted, 3*VoteLimit.MaxRequests)
}

func TestMemoryLimiterCleanup(t *testing.T) {
	clock := time.Now()
	rl := newTestMemoryLimiter(t, RateLimitConfig{MaxRequests: 1, Window: time.Minute}, &clock)

	rl.Allow(context.Background(), "a")
	clock = clock.Add(30 * time.Second)
	rl.Allow(context.Background(), "b")
	clock = clock.Add(45 * time.Second)
	rl.cleanupIdle()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.windows, "a")
	assert.Contains(t, rl.windows, "b")
}

func TestTokenBucketLimiter(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewTokenBucketLimiter(RateLimitConfig{MaxRequests: 3, Window: time.Minute})
	rl.now = func() time.Time { return clock }
	t.Cleanup(rl.Stop)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := rl.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := rl.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.WithinDuration(t, clock.Add(20*time.Second), d.ResetAt, time.Millisecond)

	clock = clock.Add(20 * time.Second)
	d, _ = rl.Allow(ctx, "1.2.3.4")
	assert.True(t, d.Allowed)

	clock = clock.Add(2 * time.Minute)
	rl.cleanupIdle()
	rl.mu.Lock()
	assert.Empty(t, rl.buckets)
	rl.mu.Unlock()
}

func TestGetClientIP(t *testing.T) {
	t.Cleanup(func() { require.NoError(t, SetTrustedProxies(nil)) })

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", GetClientIP(r))

	// Forwarding headers from an untrusted peer are ignored.
	r.Header.Set("X-Real-IP", "192.0.2.7")
	r.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "10.0.0.1", GetClientIP(r))

	require.NoError(t, SetTrustedProxies([]string{"10.0.0.0/8", "::1"}))
	r.Header.Del("X-Forwarded-For")
	assert.Equal(t, "192.0.2.7", GetClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.2")
	assert.Equal(t, "203.0.113.9", GetClientIP(r))

	// A client prepending entries cannot choose its own address.
	r.Header.Set("X-Forwarded-For", "1.1.1.1, 198.51.100.4, 10.0.0.2")
	assert.Equal(t, "198.51.100.4", GetClientIP(r))

	r.Header.Set("X-Forwarded-For", "10.0.0.9, 10.0.0.2")
	assert.Equal(t, "10.0.0.9", GetClientIP(r))

	assert.Error(t, SetTrustedProxies([]string{"not-an-ip"}))
	assert.Error(t, SetTrustedProxies([]string{"10.0.0.0/99"}))
}

type stubLimiter struct {
	d   Decision
	err error
}

func (s stubLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	return s.d, s.err
}

func TestRateLimitMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	m := metrics.New()

	t.Run("allowed", func(t *testing.T) {
		h := IPRateLimitMiddleware(stubLimiter{d: Decision{Allowed: true, Limit: 10, Remaining: 9, ResetAt: time.Now().Add(time.Minute)}}, "vote", m)(ok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/vote", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("denied", func(t *testing.T) {
		h := IPRateLimitMiddleware(stubLimiter{d: Decision{Allowed: false, Limit: 10, ResetAt: time.Now().Add(30 * time.Second)}}, "vote", m)(ok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/vote", nil))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), "retryAfter")
		assert.Contains(t, rec.Body.String(), "Too many votes")
		assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited.WithLabelValues("vote")))
	})

	t.Run("limiter failure lets request through", func(t *testing.T) {
		h := IPRateLimitMiddleware(stubLimiter{err: errors.New("boom")}, "vote", m)(ok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/vote", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func newTestRedisLimiter(t *testing.T, now time.Time) (*RedisLimiter, redismock.ClientMock, *metrics.Metrics) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	m := metrics.New()
	fallback := NewMemoryLimiter(RateLimitConfig{MaxRequests: 10, Window: time.Minute})
	t.Cleanup(fallback.Stop)

	l := NewRedisLimiter(client, RateLimitConfig{MaxRequests: 10, Window: time.Minute}, "ratelimit:vote", fallback, m)
	l.now = func() time.Time { return now }
	l.newMember = func() string { return "member-1" }
	return l, mock, m
}

func TestRedisLimiterAllows(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	l, mock, _ := newTestRedisLimiter(t, now)

	reset := now.Add(time.Minute).UnixMilli()
	mock.ExpectEvalSha(slidingWindowScript.Hash(), []string{"ratelimit:vote:1.2.3.4"},
		now.UnixMilli(), int64(60000), 10, "member-1").
		SetVal([]interface{}{int64(1), int64(9), reset})

	d, err := l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 9, d.Remaining)
	assert.Equal(t, 10, d.Limit)
	assert.Equal(t, reset, d.ResetAt.UnixMilli())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLimiterDenies(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	l, mock, _ := newTestRedisLimiter(t, now)

	reset := now.Add(12 * time.Second).UnixMilli()
	mock.ExpectEvalSha(slidingWindowScript.Hash(), []string{"ratelimit:vote:1.2.3.4"},
		now.UnixMilli(), int64(60000), 10, "member-1").
		SetVal([]interface{}{int64(0), int64(0), reset})

	d, err := l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, reset, d.ResetAt.UnixMilli())
}

func TestRedisLimiterFallsBackAndTrips(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	l, mock, m := newTestRedisLimiter(t, now)

	for i := 0; i < 5; i++ {
		mock.ExpectEvalSha(slidingWindowScript.Hash(), []string{"ratelimit:vote:9.9.9.9"},
			now.UnixMilli(), int64(60000), 10, "member-1").
			SetErr(errors.New("connection refused"))
	}

	for i := 0; i < 6; i++ {
		d, err := l.Allow(context.Background(), "9.9.9.9")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	assert.Equal(t, gobreaker.StateOpen, l.breaker.State())
	assert.Equal(t, 6.0, testutil.ToFloat64(m.LimiterErrors))
	assert.NoError(t, mock.ExpectationsWereMet())
}
