package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"ascii-arena/internal/models"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the arena. Each instance owns
// its registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	Votes         *prometheus.CounterVec
	RatingDelta   *prometheus.HistogramVec
	ApplyAttempts prometheus.Histogram
	RateLimited   *prometheus.CounterVec
	LimiterErrors prometheus.Counter
	HTTPDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		Votes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arena_votes_total",
				Help: "Votes received, by outcome",
			},
			[]string{"outcome"},
		),

		RatingDelta: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arena_rating_delta_points",
				Help:    "Absolute rating change applied per vote",
				Buckets: []float64{1, 2, 4, 8, 12, 16, 24, 32},
			},
			[]string{"side"},
		),

		ApplyAttempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "arena_rating_update_attempts",
				Help:    "Compare-and-swap rounds needed to persist a vote",
				Buckets: []float64{1, 2, 3, 5, 8},
			},
		),

		RateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arena_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"limiter"},
		),

		LimiterErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "arena_rate_limiter_errors_total",
				Help: "Rate limiter backend failures that fell back to local limiting",
			},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "arena_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "code"},
		),
	}

	m.Registry.MustRegister(
		m.Votes,
		m.RatingDelta,
		m.ApplyAttempts,
		m.RateLimited,
		m.LimiterErrors,
		m.HTTPDuration,
	)
	return m
}

// ObserveVote records a successfully applied rating change.
func (m *Metrics) ObserveVote(change *models.RatingChange) {
	m.Votes.WithLabelValues("recorded").Inc()
	m.RatingDelta.WithLabelValues("winner").Observe(abs(change.Winner.Change))
	m.RatingDelta.WithLabelValues("loser").Observe(abs(change.Loser.Change))
	if change.Attempts > 0 {
		m.ApplyAttempts.Observe(float64(change.Attempts))
	}
}

func (m *Metrics) ObserveRejectedVote(outcome string) {
	m.Votes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware times each request, labelled by its mux route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.HTTPDuration.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func abs(n int) float64 {
	if n < 0 {
		return float64(-n)
	}
	return float64(n)
}
