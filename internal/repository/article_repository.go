package repository

import (
	"context"
	"time"

	"feedproxy/internal/domain/entity"
)

type ArticleRepository interface {
	Get(ctx context.Context, id int64) (*entity.Article, error)
	// InsertIfAbsent is idempotent on (feed_id, url): if a row already
	// exists it is returned unmodified (modulo backfilling empty
	// title/description/comments_url, mirroring the original's
	// "retrieve and patch missing fields" merge behavior).
	InsertIfAbsent(ctx context.Context, article *entity.Article) (*entity.Article, error)
	Update(ctx context.Context, article *entity.Article) error
	SetEmbedding(ctx context.Context, id int64, embedding []float32) error
	Delete(ctx context.Context, id int64) error

	// ListRecent returns the n articles for feedID with the greatest
	// pub_date, ties broken by id descending.
	ListRecent(ctx context.Context, feedID int64, n int) ([]*entity.Article, error)
	// ExistsByURLBatch resolves (feed_id, url) membership for a batch of
	// URLs in one round trip, avoiding an N+1 existence check per item.
	ExistsByURLBatch(ctx context.Context, feedID int64, urls []string) (map[string]bool, error)

	// WithoutEmbedding returns up to limit articles lacking an embedding,
	// for C6's batch computation.
	WithoutEmbedding(ctx context.Context, limit int) ([]*entity.Article, error)

	// DeleteUnreadOlderThan deletes articles older than cutoff with no
	// UserArticleLink, returning the number of rows removed.
	DeleteUnreadOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	// ClearEmbeddingsOlderThan nulls the embedding column for articles
	// older than cutoff, returning the number of rows affected.
	ClearEmbeddingsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	CountArticles(ctx context.Context) (int64, error)
	CountWithEmbedding(ctx context.Context) (int64, error)
}
