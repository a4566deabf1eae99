package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ascii-arena/internal/audit"
	"ascii-arena/internal/auth"
	"ascii-arena/internal/config"
	"ascii-arena/internal/db"
	"ascii-arena/internal/elo"
	"ascii-arena/internal/eventbus"
	"ascii-arena/internal/handlers"
	"ascii-arena/internal/metrics"
	"ascii-arena/internal/middleware"
	"ascii-arena/internal/services"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log.Info().Str("env", cfg.Environment).Str("storage", cfg.Storage.Driver).Msg("starting arena server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	st, err := db.Open(ctx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		st.Close(ctx)
	}()

	m := metrics.New()
	auditLog := audit.NewLogger(st)
	defer auditLog.Wait()

	feed := handlers.NewLeaderboardFeed()
	defer feed.Stop()

	// With MongoDB, peers share rating updates through a change stream.
	if ms, ok := st.(*db.MongoStore); ok {
		bus := eventbus.New(ms.DB().FeedEvents(), feed.GetHub().Broadcast)
		idxCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := bus.EnsureIndexes(idxCtx); err != nil {
			log.Warn().Err(err).Msg("failed to create feed_events index")
		}
		cancel()
		bus.Start()
		defer bus.Stop()
		feed.SetRelay(bus)
	}

	if err := middleware.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return err
	}

	voteLimit := middleware.RateLimitConfig{
		MaxRequests: cfg.RateLimit.Votes,
		Window:      time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
	}
	memLimiter := middleware.NewMemoryLimiter(voteLimit)
	defer memLimiter.Stop()

	var limiter middleware.Limiter = memLimiter
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, limiter will fall back to memory")
		} else {
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
		cancel()
		limiter = middleware.NewRedisLimiter(client, voteLimit, cfg.RateLimit.Prefix, memLimiter, m)
	}

	loginLimiter := middleware.NewTokenBucketLimiter(middleware.LoginLimit)
	defer loginLimiter.Stop()

	jwtSecret, err := adminSecret(cfg)
	if err != nil {
		return err
	}
	jwtService := auth.NewJWTService(jwtSecret, time.Duration(cfg.Admin.TokenTTL)*time.Minute)
	if cfg.Admin.PasswordHash == "" {
		log.Warn().Msg("admin.passwordHash is empty; admin endpoints are disabled")
	}

	router := handlers.NewRouter(handlers.Router{
		Votes: handlers.NewVoteHandler(
			services.NewVoteService(st, m, auditLog, feed),
			services.NewPairSelector(st),
		),
		Leaderboard:  handlers.NewLeaderboardHandler(services.NewLeaderboardService(st)),
		Ratings:      handlers.NewRatingsHandler(elo.NewCalculator()),
		Admin:        handlers.NewAdminHandler(st, jwtService, auth.NewPasswordService(), cfg.Admin.PasswordHash, auditLog),
		Feed:         feed,
		AdminAuth:    middleware.NewAuthMiddleware(jwtService),
		VoteLimiter:  limiter,
		VoteLimit:    voteLimit,
		LoginLimiter: loginLimiter,
		Metrics:      m,
		FrontendURL:  cfg.Frontend.URL,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

// adminSecret returns the configured JWT secret, or a random one that only
// lives as long as the process.
func adminSecret(cfg *config.Config) (string, error) {
	if cfg.Admin.JWTSecret != "" {
		return cfg.Admin.JWTSecret, nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate jwt secret: %w", err)
	}
	log.Warn().Msg("admin.jwtSecret is empty; using an ephemeral secret")
	return hex.EncodeToString(buf), nil
}
