package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/infra/gemini"
	"timed-quiz-service/internal/infra/memory"
	"timed-quiz-service/internal/infra/postgres"
	redisinfra "timed-quiz-service/internal/infra/redis"
	"timed-quiz-service/internal/telemetry"
	transport "timed-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// stores groups the persistence ports so both backends are built the same way.
type stores struct {
	quizzes  app.QuizStore
	attempts app.AttemptStore
	requests app.ReattemptStore
	reports  app.ReportStore
	close    func()
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := telemetry.NewLogger(telemetry.LogOptions{Level: cfg.Log.Level, File: cfg.Log.File})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	standingsTTL := config.TTLDuration(cfg.Leaderboard.TTL, 30*time.Second)
	accessTTL := config.TTLDuration(cfg.Access.TTL, 24*time.Hour)

	var (
		standings app.StandingsCache
		gate      app.AccessGate
		feeds     app.FeedRepository
	)
	if redisClient != nil {
		standings = redisinfra.NewStandingsCache(redisClient, st.reports, cfg.LeaderboardTop(), standingsTTL)
		gate = redisinfra.NewAccessGate(redisClient, accessTTL)
		relay := redisinfra.NewFeedStore(redisClient, logger)
		if err := relay.Listen(ctx); err != nil {
			return fmt.Errorf("subscribe to feed channel: %w", err)
		}
		feeds = relay
		logger.Info("using redis for standings, access and feeds", zap.String("addr", cfg.Redis.Addr))
	} else {
		standings = memory.NewStandingsCache(st.reports, cfg.LeaderboardTop(), standingsTTL)
		gate = memory.NewAccessGate()
		feeds = memory.NewFeedStore()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(registry)

	service := app.NewQuizService(app.Deps{
		Quizzes:   st.quizzes,
		Attempts:  st.attempts,
		Requests:  st.requests,
		Reports:   st.reports,
		Gate:      gate,
		Standings: standings,
		Feeds:     feeds,
		Observer:  metrics,
		Logger:    logger,
	})

	var drafts *app.DraftService
	if cfg.AI.APIKey != "" {
		generator, err := gemini.NewClient(ctx, gemini.Options{
			BaseURL: cfg.AI.BaseURL,
			APIKey:  cfg.AI.APIKey,
			Model:   cfg.AI.Model,
			Timeout: config.TTLDuration(cfg.AI.Timeout, 60*time.Second),
		})
		if err != nil {
			return err
		}
		drafts = app.NewDraftService(generator, service, logger)
	} else {
		logger.Info("draft generation disabled, no ai.api_key configured")
	}

	rps, burst := cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 20
	}
	limiter := transport.NewRateLimiter(rps, burst)

	router := transport.NewRouter(
		transport.NewAPI(service, drafts, logger),
		transport.NewFeedHandler(service, logger),
		transport.RouterOptions{Metrics: metrics, Gatherer: registry, Limiter: limiter},
	)
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting quiz service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				limiter.Sweep(5 * time.Minute)
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStores picks Postgres when a URL is configured, migrating it first, and
// the in-memory store otherwise.
func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (stores, error) {
	if cfg.Postgres.URL == "" {
		logger.Warn("postgres url not configured, data lives in memory only")
		store := memory.NewStore()
		return stores{
			quizzes:  store,
			attempts: store,
			requests: store,
			reports:  store,
			close:    func() {},
		}, nil
	}

	db, err := openBunDB(cfg)
	if err != nil {
		return stores{}, err
	}
	if err := runMigrations(ctx, db, logger); err != nil {
		_ = db.Close()
		return stores{}, err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		_ = db.Close()
		return stores{}, err
	}
	store := postgres.NewStore(db)
	return stores{
		quizzes:  store,
		attempts: store,
		requests: store,
		reports:  postgres.NewReports(pool),
		close: func() {
			pool.Close()
			_ = db.Close()
		},
	}, nil
}
