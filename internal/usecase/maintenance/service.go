// Package maintenance implements the scheduled lifecycle operations that
// keep the store from growing without bound and that revive users/feeds
// that went dormant: freezing inactive users, aging out unread articles and
// stale embeddings, pruning orphaned link rows, and retrying disabled feeds.
package maintenance

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"feedproxy/internal/infra/db"
	"feedproxy/internal/repository"
)

// Config holds the retention/dormancy windows the original deployment
// exposed as environment variables.
type Config struct {
	DormantThreshold    time.Duration
	ArticleRetention    time.Duration
	EmbeddingRetention  time.Duration
	InactiveUserRetention time.Duration
}

func DefaultConfig() Config {
	return Config{
		DormantThreshold:      90 * 24 * time.Hour,
		ArticleRetention:      180 * 24 * time.Hour,
		EmbeddingRetention:    30 * 24 * time.Hour,
		InactiveUserRetention: 365 * 24 * time.Hour,
	}
}

type Service struct {
	users    repository.UserRepository
	feeds    repository.FeedRepository
	articles repository.ArticleRepository
	rawDB    *sql.DB
	backend  db.Backend
	cfg      Config
	logger   *slog.Logger
}

func NewService(users repository.UserRepository, feeds repository.FeedRepository, articles repository.ArticleRepository, rawDB *sql.DB, backend db.Backend, cfg Config, logger *slog.Logger) *Service {
	return &Service{users: users, feeds: feeds, articles: articles, rawDB: rawDB, backend: backend, cfg: cfg, logger: logger}
}

// FreezeDormantUsers sets is_frozen on every user whose last request predates
// DormantThreshold and who isn't already frozen, returning how many it froze.
func (s *Service) FreezeDormantUsers(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	dormant, err := s.users.ListDormant(ctx, s.cfg.DormantThreshold, now)
	if err != nil {
		return 0, fmt.Errorf("list dormant users: %w", err)
	}
	for _, u := range dormant {
		if err := s.users.SetFrozen(ctx, u.ID, true, now); err != nil {
			return 0, fmt.Errorf("freeze user %s: %w", u.ID, err)
		}
	}
	s.logger.Info("froze dormant users", slog.Int("count", len(dormant)), slog.Duration("threshold", s.cfg.DormantThreshold))
	return len(dormant), nil
}

// UnfreezeUser clears a user's frozen state, called when they make a new
// request or click after going dormant.
func (s *Service) UnfreezeUser(ctx context.Context, userID string) error {
	if err := s.users.SetFrozen(ctx, userID, false, time.Now().UTC()); err != nil {
		return fmt.Errorf("unfreeze user %s: %w", userID, err)
	}
	return nil
}

// RemoveOldEmbeddings clears the embedding column for articles not updated
// recently, forcing them to be recomputed if they resurface.
func (s *Service) RemoveOldEmbeddings(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.EmbeddingRetention)
	n, err := s.articles.ClearEmbeddingsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("clear old embeddings: %w", err)
	}
	s.logger.Info("removed old embeddings", slog.Int64("count", n))
	return n, nil
}

// CleanupOldArticles deletes unread articles older than ArticleRetention.
func (s *Service) CleanupOldArticles(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.ArticleRetention)
	n, err := s.articles.DeleteUnreadOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old articles: %w", err)
	}
	s.logger.Info("deleted old unread articles", slog.Int64("count", n))
	return n, nil
}

// CleanupOrphanLinks removes user-article and user-feed link rows that point
// at rows which no longer exist, returning (articleLinks, feedLinks) removed.
func (s *Service) CleanupOrphanLinks(ctx context.Context) (int64, int64, error) {
	articleLinks, err := s.users.CleanupOrphanArticleLinks(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("cleanup orphan article links: %w", err)
	}
	feedLinks, err := s.users.CleanupOrphanFeedLinks(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("cleanup orphan feed links: %w", err)
	}
	s.logger.Info("cleaned up orphan links", slog.Int64("article_links", articleLinks), slog.Int64("feed_links", feedLinks))
	return articleLinks, feedLinks, nil
}

// CleanupInactiveUsers deletes users who haven't made a request in
// InactiveUserRetention and have no feed or article links.
func (s *Service) CleanupInactiveUsers(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	ids, err := s.users.ListInactive(ctx, s.cfg.InactiveUserRetention, now)
	if err != nil {
		return 0, fmt.Errorf("list inactive users: %w", err)
	}
	for _, id := range ids {
		if err := s.users.Delete(ctx, id); err != nil {
			return 0, fmt.Errorf("delete inactive user %s: %w", id, err)
		}
	}
	s.logger.Info("deleted inactive users", slog.Int("count", len(ids)))
	return len(ids), nil
}

// VacuumDatabase reclaims disk space and refreshes planner statistics.
// SQLite's VACUUM+ANALYZE and Postgres's VACUUM ANALYZE both accept this
// pair of statements, so the same calls serve either backend.
func (s *Service) VacuumDatabase(ctx context.Context) error {
	if _, err := s.rawDB.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	if _, err := s.rawDB.ExecContext(ctx, "ANALYZE"); err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	s.logger.Info("vacuumed and analyzed database")
	return nil
}

// RetryDisabledFeeds clears the disabled flag and failure counter on every
// disabled feed so the next scheduled fetch gets a fresh attempt.
func (s *Service) RetryDisabledFeeds(ctx context.Context) (int, error) {
	disabled, err := s.feeds.ListDisabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("list disabled feeds: %w", err)
	}
	for _, feed := range disabled {
		feed.IsDisabled = false
		feed.ConsecutiveFailures = 0
		feed.LastError = ""
		if err := s.feeds.Update(ctx, feed); err != nil {
			return 0, fmt.Errorf("re-enable feed %d: %w", feed.ID, err)
		}
	}
	s.logger.Info("re-enabled disabled feeds for retry", slog.Int("count", len(disabled)))
	return len(disabled), nil
}

// Stats mirrors get_database_stats: point-in-time counts used for an
// operator-facing health snapshot.
type Stats struct {
	TotalUsers         int64
	FrozenUsers        int64
	TotalFeeds         int64
	TotalArticles      int64
	ArticlesWithEmbeds int64
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	var err error
	if stats.TotalUsers, err = s.users.CountUsers(ctx); err != nil {
		return Stats{}, fmt.Errorf("count users: %w", err)
	}
	if stats.FrozenUsers, err = s.users.CountFrozenUsers(ctx); err != nil {
		return Stats{}, fmt.Errorf("count frozen users: %w", err)
	}
	if stats.TotalFeeds, err = s.feeds.CountFeeds(ctx); err != nil {
		return Stats{}, fmt.Errorf("count feeds: %w", err)
	}
	if stats.TotalArticles, err = s.articles.CountArticles(ctx); err != nil {
		return Stats{}, fmt.Errorf("count articles: %w", err)
	}
	if stats.ArticlesWithEmbeds, err = s.articles.CountWithEmbedding(ctx); err != nil {
		return Stats{}, fmt.Errorf("count articles with embedding: %w", err)
	}
	return stats, nil
}

// MaintenanceResult summarizes a RunFull pass, mirroring run_full_maintenance's
// return dict.
type MaintenanceResult struct {
	FrozenUsers        int
	RemovedEmbeddings  int64
	DeletedArticles    int64
	OrphanArticleLinks int64
	OrphanFeedLinks    int64
	Vacuumed           bool
}

// RunFull executes the full daily maintenance cycle in the fixed order the
// original job ran it: freeze, age out embeddings, delete stale unread
// articles, prune orphan links, then vacuum.
func (s *Service) RunFull(ctx context.Context) (MaintenanceResult, error) {
	var result MaintenanceResult
	var err error

	s.logger.Info("starting full maintenance cycle")

	if result.FrozenUsers, err = s.FreezeDormantUsers(ctx); err != nil {
		return result, err
	}
	if result.RemovedEmbeddings, err = s.RemoveOldEmbeddings(ctx); err != nil {
		return result, err
	}
	if result.DeletedArticles, err = s.CleanupOldArticles(ctx); err != nil {
		return result, err
	}
	if result.OrphanArticleLinks, result.OrphanFeedLinks, err = s.CleanupOrphanLinks(ctx); err != nil {
		return result, err
	}
	if err := s.VacuumDatabase(ctx); err != nil {
		return result, err
	}
	result.Vacuumed = true

	s.logger.Info("full maintenance completed",
		slog.Int("frozen_users", result.FrozenUsers),
		slog.Int64("removed_embeddings", result.RemovedEmbeddings),
		slog.Int64("deleted_articles", result.DeletedArticles),
		slog.Int64("orphan_article_links", result.OrphanArticleLinks),
		slog.Int64("orphan_feed_links", result.OrphanFeedLinks))
	return result, nil
}
