// Command admin is a thin operator CLI over the maintenance and ingest
// usecases: the same jobs the worker runs on a schedule, invokable on
// demand for incident response and manual recovery.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	pgRepo "feedproxy/internal/infra/adapter/persistence/postgres"
	liteRepo "feedproxy/internal/infra/adapter/persistence/sqlite"
	"feedproxy/internal/infra/db"
	"feedproxy/internal/infra/fetcher"
	"feedproxy/internal/infra/parser"
	"feedproxy/internal/repository"
	"feedproxy/internal/usecase/ingest"
	"feedproxy/internal/usecase/maintenance"
	"feedproxy/internal/usecase/queue"
)

var commands = map[string]func(ctx context.Context, logger *slog.Logger, args []string) error{
	"stats":                cmdStats,
	"run-maintenance":      cmdRunMaintenance,
	"retry-disabled-feeds": cmdRetryDisabledFeeds,
	"freeze-dormant-users": cmdFreezeDormantUsers,
	"unfreeze-user":        cmdUnfreezeUser,
	"fetch-all-feeds":      cmdFetchAllFeeds,
}

func main() {
	logger := initLogger()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err := cmd(context.Background(), logger, os.Args[2:]); err != nil {
		logger.Error("command failed", slog.String("command", os.Args[1]), slog.Any("error", err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin <command> [args]")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  stats                          print store-wide counts")
	fmt.Fprintln(os.Stderr, "  run-maintenance                run the full daily maintenance cycle now")
	fmt.Fprintln(os.Stderr, "  retry-disabled-feeds           re-enable every disabled feed")
	fmt.Fprintln(os.Stderr, "  freeze-dormant-users           freeze users past the dormancy threshold")
	fmt.Fprintln(os.Stderr, "  unfreeze-user -user <id>       clear a user's frozen state")
	fmt.Fprintln(os.Stderr, "  fetch-all-feeds                enqueue a fetch for every stale feed")
}

func initLogger() *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
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

func newMaintenanceService(logger *slog.Logger) (*maintenance.Service, *sql.DB) {
	database, backend := initDatabase(logger)
	r := newRepos(database, backend)
	return maintenance.NewService(r.Users, r.Feeds, r.Articles, database, backend, maintenance.DefaultConfig(), logger), database
}

func cmdStats(ctx context.Context, logger *slog.Logger, _ []string) error {
	svc, database := newMaintenanceService(logger)
	defer database.Close()

	stats, err := svc.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	fmt.Printf("users:            %d (%d frozen)\n", stats.TotalUsers, stats.FrozenUsers)
	fmt.Printf("feeds:            %d\n", stats.TotalFeeds)
	fmt.Printf("articles:         %d (%d with embeddings)\n", stats.TotalArticles, stats.ArticlesWithEmbeds)
	return nil
}

func cmdRunMaintenance(ctx context.Context, logger *slog.Logger, _ []string) error {
	svc, database := newMaintenanceService(logger)
	defer database.Close()

	result, err := svc.RunFull(ctx)
	if err != nil {
		return fmt.Errorf("run full maintenance: %w", err)
	}
	fmt.Printf("frozen_users=%d removed_embeddings=%d deleted_articles=%d orphan_article_links=%d orphan_feed_links=%d vacuumed=%v\n",
		result.FrozenUsers, result.RemovedEmbeddings, result.DeletedArticles, result.OrphanArticleLinks, result.OrphanFeedLinks, result.Vacuumed)
	return nil
}

func cmdRetryDisabledFeeds(ctx context.Context, logger *slog.Logger, _ []string) error {
	svc, database := newMaintenanceService(logger)
	defer database.Close()

	n, err := svc.RetryDisabledFeeds(ctx)
	if err != nil {
		return fmt.Errorf("retry disabled feeds: %w", err)
	}
	fmt.Printf("re-enabled %d feeds\n", n)
	return nil
}

func cmdFreezeDormantUsers(ctx context.Context, logger *slog.Logger, _ []string) error {
	svc, database := newMaintenanceService(logger)
	defer database.Close()

	n, err := svc.FreezeDormantUsers(ctx)
	if err != nil {
		return fmt.Errorf("freeze dormant users: %w", err)
	}
	fmt.Printf("froze %d users\n", n)
	return nil
}

func cmdUnfreezeUser(ctx context.Context, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("unfreeze-user", flag.ExitOnError)
	userID := fs.String("user", "", "user id to unfreeze")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" {
		return fmt.Errorf("-user is required")
	}

	svc, database := newMaintenanceService(logger)
	defer database.Close()

	if err := svc.UnfreezeUser(ctx, *userID); err != nil {
		return fmt.Errorf("unfreeze user %s: %w", *userID, err)
	}
	fmt.Printf("unfroze user %s\n", *userID)
	return nil
}

func cmdFetchAllFeeds(ctx context.Context, logger *slog.Logger, _ []string) error {
	database, backend := initDatabase(logger)
	defer database.Close()
	r := newRepos(database, backend)

	fetcherCfg, err := fetcher.LoadConfigFromEnv()
	if err != nil {
		return fmt.Errorf("load fetcher config: %w", err)
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return fmt.Errorf("REDIS_URL must be set to enqueue feed fetches")
	}
	q, err := queue.New(redisURL)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}

	ingestSvc := ingest.NewService(fetcher.New(fetcherCfg), parser.New(), r.Feeds, r.Articles, q, logger)
	n, err := ingestSvc.FetchAllFeeds(ctx)
	if err != nil {
		return fmt.Errorf("fetch all feeds: %w", err)
	}
	fmt.Printf("enqueued %d stale feeds for fetch\n", n)
	return nil
}
