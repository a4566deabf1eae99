package handlers

import (
	"fmt"
	"net/http"

	"ascii-arena/internal/metrics"
	"ascii-arena/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Router bundles everything NewRouter needs to mount the API.
type Router struct {
	Votes       *VoteHandler
	Leaderboard *LeaderboardHandler
	Ratings     *RatingsHandler
	Admin       *AdminHandler
	Feed        *LeaderboardFeed

	AdminAuth    *middleware.AuthMiddleware
	VoteLimiter  middleware.Limiter
	VoteLimit    middleware.RateLimitConfig
	LoginLimiter middleware.Limiter
	Metrics      *metrics.Metrics
	FrontendURL  string
}

func NewRouter(rt Router) http.Handler {
	router := mux.NewRouter()
	if rt.Metrics != nil {
		router.Use(rt.Metrics.Middleware)
	}
	router.Use(middleware.SecurityHeaders)

	// WebSocket routes
	router.HandleFunc("/ws/leaderboard", rt.Feed.HandleWebSocket)

	// API routes
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/random-pair", rt.Votes.RandomPair).Methods("GET")
	api.Handle("/vote",
		middleware.IPRateLimitMiddleware(rt.VoteLimiter, "vote", rt.Metrics)(http.HandlerFunc(rt.Votes.Vote)),
	).Methods("POST")
	api.HandleFunc("/leaderboard", rt.Leaderboard.GetLeaderboard).Methods("GET")
	api.HandleFunc("/ratings/preview", rt.Ratings.Preview).Methods("GET")

	// Admin routes
	var login http.Handler = http.HandlerFunc(rt.Admin.Login)
	if rt.LoginLimiter != nil {
		login = middleware.IPRateLimitMiddleware(rt.LoginLimiter, "login", rt.Metrics)(login)
	}
	api.Handle("/admin/login", login).Methods("POST")
	adminApi := api.PathPrefix("/admin").Subrouter()
	adminApi.Use(rt.AdminAuth.RequireAdmin)
	adminApi.HandleFunc("/models", rt.Admin.CreateModel).Methods("POST")
	adminApi.HandleFunc("/prompts", rt.Admin.CreatePrompt).Methods("POST")
	adminApi.HandleFunc("/outputs", rt.Admin.CreateOutput).Methods("POST")

	// API Documentation
	router.HandleFunc("/docs", DocsHandler(rt.VoteLimit.MaxRequests, fmt.Sprint(rt.VoteLimit.Window))).Methods("GET")

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	if rt.Metrics != nil {
		router.Handle("/metrics", rt.Metrics.Handler()).Methods("GET")
	}

	var origins []string
	if rt.FrontendURL != "" {
		origins = []string{rt.FrontendURL}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
	})
	return corsHandler.Handler(router)
}
