package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"ascii-arena/internal/metrics"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RateLimitConfig defines rate limit parameters
type RateLimitConfig struct {
	MaxRequests int           // Maximum requests allowed in the window
	Window      time.Duration // Time window for rate limiting
}

// VoteLimit: 10 votes per 60 seconds per IP
var VoteLimit = RateLimitConfig{MaxRequests: 10, Window: 60 * time.Second}

// LoginLimit: a burst of 5 admin login attempts, then one every 3 minutes
var LoginLimit = RateLimitConfig{MaxRequests: 5, Window: 15 * time.Minute}

// startJanitor runs sweep every interval until the returned stop is called.
func startJanitor(interval time.Duration, sweep func()) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				sweep()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

// MemoryLimiter is a sliding-window log kept in process memory: a key may
// make MaxRequests requests in any Window. It uses the same boundaries as
// the Redis script, so falling back from Redis does not change behaviour.
type MemoryLimiter struct {
	config  RateLimitConfig
	mu      sync.Mutex
	windows map[string][]time.Time
	stop    func()
	now     func() time.Time
}

// NewMemoryLimiter creates a limiter with automatic cleanup of idle keys.
func NewMemoryLimiter(config RateLimitConfig) *MemoryLimiter {
	rl := &MemoryLimiter{
		config:  config,
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
	rl.stop = startJanitor(5*time.Minute, rl.cleanupIdle)
	return rl
}

// Stop stops the cleanup goroutine
func (rl *MemoryLimiter) Stop() {
	rl.stop()
}

// prune drops hits at or before now-Window. hits is sorted oldest first.
func (rl *MemoryLimiter) prune(hits []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-rl.config.Window)
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

// cleanupIdle drops keys with no hits left in the window.
func (rl *MemoryLimiter) cleanupIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, hits := range rl.windows {
		if len(rl.prune(hits, now)) == 0 {
			delete(rl.windows, key)
		}
	}
}

func (rl *MemoryLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	hits := rl.prune(rl.windows[key], now)
	d := Decision{Limit: rl.config.MaxRequests}

	if len(hits) < rl.config.MaxRequests {
		hits = append(hits, now)
		rl.windows[key] = hits
		d.Allowed = true
		d.Remaining = rl.config.MaxRequests - len(hits)
		d.ResetAt = now.Add(rl.config.Window)
		return d, nil
	}

	rl.windows[key] = hits
	d.ResetAt = now.Add(rl.config.Window)
	if len(hits) > 0 {
		d.ResetAt = hits[0].Add(rl.config.Window)
	}
	return d, nil
}

// TokenBucketLimiter is a per-key token bucket. A bucket holds MaxRequests
// tokens and refills one token every Window/MaxRequests. It suits bursty
// callers such as admin logins, where a few quick retries are fine but a
// sustained guessing rate is not.
type TokenBucketLimiter struct {
	config  RateLimitConfig
	mu      sync.Mutex
	buckets map[string]*bucket
	stop    func()
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewTokenBucketLimiter(config RateLimitConfig) *TokenBucketLimiter {
	rl := &TokenBucketLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
	rl.stop = startJanitor(5*time.Minute, rl.cleanupIdle)
	return rl
}

func (rl *TokenBucketLimiter) Stop() {
	rl.stop()
}

// cleanupIdle drops buckets that have had a full window to refill.
func (rl *TokenBucketLimiter) cleanupIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.config.Window)
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

func (rl *TokenBucketLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		every := rl.config.Window / time.Duration(rl.config.MaxRequests)
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), rl.config.MaxRequests)}
		rl.buckets[key] = b
	}
	b.lastSeen = now

	d := Decision{Limit: rl.config.MaxRequests}
	if b.limiter.AllowN(now, 1) {
		d.Allowed = true
		d.Remaining = int(b.limiter.TokensAt(now))
		d.ResetAt = now.Add(refillTime(b.limiter, now, float64(rl.config.MaxRequests)))
		return d, nil
	}

	d.ResetAt = now.Add(refillTime(b.limiter, now, 1))
	return d, nil
}

// refillTime is how long until the bucket holds want tokens.
func refillTime(l *rate.Limiter, now time.Time, want float64) time.Duration {
	missing := want - l.TokensAt(now)
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / float64(l.Limit()) * float64(time.Second))
}

var rejectMessages = map[string]string{
	"vote":  "Too many votes. Please slow down.",
	"login": "Too many login attempts. Please try again later.",
}

// RateLimitMiddleware rejects requests the limiter denies with 429. scope
// labels the rejection metric. When the limiter itself fails the request is
// let through.
func RateLimitMiddleware(limiter Limiter, keyFunc func(*http.Request) string, scope string, m *metrics.Metrics) func(http.Handler) http.Handler {
	message, ok := rejectMessages[scope]
	if !ok {
		message = "Too many requests. Please slow down."
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := limiter.Allow(r.Context(), keyFunc(r))
			if err != nil {
				log.Error().Err(err).Msg("rate limiter failed, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", d.ResetAt.UTC().Format(time.RFC3339))

			if !d.Allowed {
				retryAfter := int(time.Until(d.ResetAt).Seconds() + 0.999)
				if retryAfter < 1 {
					retryAfter = 1
				}
				if m != nil {
					m.RateLimited.WithLabelValues(scope).Inc()
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error":      message,
					"retryAfter": retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IPRateLimitMiddleware rate limits by client IP
func IPRateLimitMiddleware(limiter Limiter, scope string, m *metrics.Metrics) func(http.Handler) http.Handler {
	return RateLimitMiddleware(limiter, GetClientIP, scope, m)
}
