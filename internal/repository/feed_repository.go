package repository

import (
	"context"
	"time"

	"feedproxy/internal/domain/entity"
)

// FeedRepository manages Feed rows: lookup by canonical or original URL,
// upsert, and the failure-tracking bulk updates maintenance needs.
type FeedRepository interface {
	Get(ctx context.Context, id int64) (*entity.Feed, error)
	// FindByURL resolves against both url and original_url.
	FindByURL(ctx context.Context, url string) (*entity.Feed, error)
	// Upsert creates the feed row if absent and returns the current row.
	Upsert(ctx context.Context, canonicalURL string) (*entity.Feed, error)
	Update(ctx context.Context, feed *entity.Feed) error
	Delete(ctx context.Context, id int64) error

	ListDisabled(ctx context.Context) ([]*entity.Feed, error)
	List(ctx context.Context) ([]*entity.Feed, error)
	// ListStale returns feeds whose UpdatedAt predates the interval, capped at limit.
	ListStale(ctx context.Context, interval time.Duration, now time.Time, limit int) ([]*entity.Feed, error)

	// RenameURL implements the permanent-redirect bookkeeping: sets
	// OriginalURL to the old URL (once) and URL to newURL.
	RenameURL(ctx context.Context, feedID int64, newURL string) error
	CountFeeds(ctx context.Context) (int64, error)
}
