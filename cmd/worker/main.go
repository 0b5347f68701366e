package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "modernc.org/sqlite"

	pgRepo "feedproxy/internal/infra/adapter/persistence/postgres"
	liteRepo "feedproxy/internal/infra/adapter/persistence/sqlite"
	"feedproxy/internal/infra/db"
	"feedproxy/internal/infra/fetcher"
	"feedproxy/internal/infra/parser"
	workerPkg "feedproxy/internal/infra/worker"
	"feedproxy/internal/pkg/config"
	"feedproxy/internal/repository"
	"feedproxy/internal/usecase/embedding"
	usefeed "feedproxy/internal/usecase/feed"
	"feedproxy/internal/usecase/ingest"
	"feedproxy/internal/usecase/jobs"
	"feedproxy/internal/usecase/maintenance"
	"feedproxy/internal/usecase/queue"
)

func main() {
	logger := initLogger()
	database, backend := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisURL := config.LoadEnvString("REDIS_URL", "")
	if redisURL == "" {
		logger.Error("REDIS_URL must be set for the worker process")
		os.Exit(1)
	}
	q, err := queue.New(redisURL)
	if err != nil {
		logger.Error("failed to connect to redis", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := workerPkg.NewWorkerMetrics()
	metrics.MustRegister()
	go startMetricsServer(ctx, logger)

	r := newRepos(database, backend)
	handlers := buildHandlers(logger, database, backend, r, q, metrics)

	healthPort := config.LoadEnvString("HEALTH_PORT", "9091")
	healthServer := workerPkg.NewHealthServer(":"+healthPort, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", ":"+healthPort))

	scheduler, err := queue.NewScheduler(q, logger)
	if err != nil {
		logger.Error("failed to build scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	healthServer.SetReady(true)

	dispatcher := queue.NewDispatcher(q, logger)
	go func() {
		if err := dispatcher.Run(ctx, handlers); err != nil && ctx.Err() == nil {
			logger.Error("dispatcher stopped unexpectedly", slog.Any("error", err))
		}
	}()
	logger.Info("worker dispatcher started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down worker...")
	cancel()
}

func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func initDatabase(logger *slog.Logger) (*sql.DB, db.Backend) {
	database, backend := db.Open()
	if err := db.MigrateUp(database, backend); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	return database, backend
}

type repos struct {
	Feeds    repository.FeedRepository
	Articles repository.ArticleRepository
	Users    repository.UserRepository
}

func newRepos(database *sql.DB, backend db.Backend) repos {
	if backend == db.BackendPostgres {
		return repos{
			Feeds:    pgRepo.NewFeedRepo(database),
			Articles: pgRepo.NewArticleRepo(database),
			Users:    pgRepo.NewUserRepo(database),
		}
	}
	return repos{
		Feeds:    liteRepo.NewFeedRepo(database),
		Articles: liteRepo.NewArticleRepo(database),
		Users:    liteRepo.NewUserRepo(database),
	}
}

// buildEmbeddingProvider picks OpenAI when EMBEDDING_API_KEY is set, and
// falls back to the deterministic hash-based provider otherwise so the
// worker still runs (with degraded personalization) in dev environments.
func buildEmbeddingProvider(logger *slog.Logger) embedding.Provider {
	apiKey := config.LoadEnvString("EMBEDDING_API_KEY", "")
	if apiKey == "" {
		logger.Warn("EMBEDDING_API_KEY not set: using fallback embedding provider")
		return embedding.NewFallbackProvider()
	}
	cfg, err := embedding.LoadOpenAIConfig()
	if err != nil {
		logger.Error("invalid embedding configuration, using fallback provider", slog.Any("error", err))
		return embedding.NewFallbackProvider()
	}
	return embedding.NewOpenAIProvider(apiKey, cfg)
}

// startMetricsServer exposes the worker's Prometheus metrics for scraping,
// separately from the health server since the two have independent
// lifecycles (metrics stay up even if a readiness check starts failing).
func startMetricsServer(ctx context.Context, logger *slog.Logger) {
	port := config.LoadEnvString("METRICS_PORT", "9090")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server starting", slog.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server failed", slog.Any("error", err))
	}
}

// instrument wraps a HandlerFunc with the worker's cron-job metrics: every
// dispatch counts as one job run, successful or not, and its wall time is
// observed regardless of outcome.
func instrument(metrics *workerPkg.WorkerMetrics, handler queue.HandlerFunc) queue.HandlerFunc {
	return func(ctx context.Context, payload []byte) error {
		start := time.Now()
		err := handler(ctx, payload)
		metrics.RecordJobDuration(time.Since(start).Seconds())
		if err != nil {
			metrics.RecordJobRun("failure")
			return err
		}
		metrics.RecordJobRun("success")
		metrics.RecordLastSuccess()
		return nil
	}
}

// buildHandlers wires every usecase into the dispatcher's queue -> handler
// table. Each queue name maps to the single task type the scheduler and
// the synchronous feed path enqueue onto it, decoded from jobs.Envelope.
func buildHandlers(logger *slog.Logger, database *sql.DB, backend db.Backend, r repos, q *queue.Client, metrics *workerPkg.WorkerMetrics) map[string]queue.HandlerFunc {
	fetcherCfg, err := fetcher.LoadConfigFromEnv()
	if err != nil {
		logger.Error("failed to load fetcher configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ingestSvc := ingest.NewService(fetcher.New(fetcherCfg), parser.New(), r.Feeds, r.Articles, q, logger)
	embeddingSvc := embedding.NewService(buildEmbeddingProvider(logger), r.Articles, r.Users, logger)
	feedCfg := usefeed.LoadConfig()
	feedSvc := usefeed.NewService(fetcher.New(fetcherCfg), parser.New(), r.Feeds, r.Articles, r.Users, q, feedCfg, logger)
	maintenanceSvc := maintenance.NewService(r.Users, r.Feeds, r.Articles, database, backend, maintenance.DefaultConfig(), logger)

	high := func(ctx context.Context, payload []byte) error {
		env, data, err := decodeEnvelope(payload)
		if err != nil {
			return err
		}
		switch env.Type {
		case jobs.TaskFetchFeedBatch:
			var p jobs.FetchFeedBatchPayload
			if err := json.Unmarshal(data, &p); err != nil {
				return fmt.Errorf("decode fetch_feed_batch: %w", err)
			}
			_, err := ingestSvc.FetchFeedBatch(ctx, p.FeedIDs)
			metrics.RecordFeedsProcessed(len(p.FeedIDs))
			return err
		case jobs.TaskLogUserAction:
			var p jobs.LogUserActionPayload
			if err := json.Unmarshal(data, &p); err != nil {
				return fmt.Errorf("decode log_user_action: %w", err)
			}
			return feedSvc.HandleLogUserAction(ctx, p.UserID, p.ArticleID, p.LinkURL)
		default:
			return fmt.Errorf("unhandled high-priority task %q", env.Type)
		}
	}

	medium := func(ctx context.Context, payload []byte) error {
		env, data, err := decodeEnvelope(payload)
		if err != nil {
			return err
		}
		switch env.Type {
		case jobs.TaskRecomputeUserClusters:
			var p jobs.RecomputeUserClustersPayload
			if err := json.Unmarshal(data, &p); err != nil {
				return fmt.Errorf("decode recompute_user_clusters: %w", err)
			}
			return embeddingSvc.RecomputeClusters(ctx, p.UserID)
		default:
			return fmt.Errorf("unhandled medium-priority task %q", env.Type)
		}
	}

	low := func(ctx context.Context, payload []byte) error {
		env, _, err := decodeEnvelope(payload)
		if err != nil {
			return err
		}
		switch env.Type {
		case jobs.TaskFetchAllFeeds:
			_, err := ingestSvc.FetchAllFeeds(ctx)
			return err
		case jobs.TaskRunFullMaintenance:
			_, err := maintenanceSvc.RunFull(ctx)
			return err
		case jobs.TaskRetryDisabledFeeds:
			_, err := maintenanceSvc.RetryDisabledFeeds(ctx)
			return err
		default:
			return fmt.Errorf("unhandled low-priority task %q", env.Type)
		}
	}

	gpu := func(ctx context.Context, payload []byte) error {
		env, _, err := decodeEnvelope(payload)
		if err != nil {
			return err
		}
		switch env.Type {
		case jobs.TaskComputeEmbeddingsBatch:
			_, err := embeddingSvc.ComputeMissing(ctx)
			return err
		default:
			return fmt.Errorf("unhandled gpu-priority task %q", env.Type)
		}
	}

	return map[string]queue.HandlerFunc{
		queue.High:   instrument(metrics, high),
		queue.Medium: instrument(metrics, medium),
		queue.Low:    instrument(metrics, low),
		queue.GPU:    instrument(metrics, gpu),
	}
}

func decodeEnvelope(payload []byte) (jobs.Envelope, json.RawMessage, error) {
	var env jobs.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return jobs.Envelope{}, nil, fmt.Errorf("decode envelope: %w", err)
	}
	return env, env.Data, nil
}
