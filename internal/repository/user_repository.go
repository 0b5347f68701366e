// Package repository defines storage interfaces for the feed proxy's
// domain entities. Implementations live under internal/infra/adapter/persistence.
package repository

import (
	"context"
	"time"

	"feedproxy/internal/domain/entity"
)

// UserRepository manages User rows and the click/subscription link tables
// that hang off a user.
type UserRepository interface {
	// Upsert creates the user if absent and returns the current row.
	Upsert(ctx context.Context, id string) (*entity.User, error)
	Get(ctx context.Context, id string) (*entity.User, error)
	// Touch updates LastRequest to now and clears IsFrozen.
	Touch(ctx context.Context, id string, now time.Time) error
	SetFrozen(ctx context.Context, id string, frozen bool, at time.Time) error
	SetClusters(ctx context.Context, id string, clusters [][]float32, at time.Time) error

	// ListDormant returns users with LastRequest older than threshold that
	// are not already frozen.
	ListDormant(ctx context.Context, threshold time.Duration, now time.Time) ([]*entity.User, error)
	// ListInactive returns users with LastRequest older than threshold and
	// zero feed/article links — candidates for cleanup_inactive_users.
	ListInactive(ctx context.Context, threshold time.Duration, now time.Time) ([]string, error)
	Delete(ctx context.Context, id string) error

	LinkFeed(ctx context.Context, userID string, feedID int64) error
	LinkArticle(ctx context.Context, userID string, articleID int64, at time.Time) error
	// ArticleClickCount returns how many UserArticleLink rows exist for the user.
	ArticleClickCount(ctx context.Context, userID string) (int, error)
	// ReadArticles returns the articles a user has clicked, most recent click first.
	ReadArticles(ctx context.Context, userID string, limit int) ([]*entity.Article, error)

	CleanupOrphanArticleLinks(ctx context.Context) (int64, error)
	CleanupOrphanFeedLinks(ctx context.Context) (int64, error)

	// Stats returns counts used by get_database_stats.
	CountUsers(ctx context.Context) (int64, error)
	CountFrozenUsers(ctx context.Context) (int64, error)
}
