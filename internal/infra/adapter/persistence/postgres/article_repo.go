package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"feedproxy/internal/domain/entity"
)

type ArticleRepo struct {
	db *sql.DB
}

func NewArticleRepo(db *sql.DB) *ArticleRepo {
	return &ArticleRepo{db: db}
}

const articleSelect = `
SELECT id, feed_id, title, url, description, comments_url, pub_date, updated, embedding
FROM articles`

func (r *ArticleRepo) Get(ctx context.Context, id int64) (*entity.Article, error) {
	row := r.db.QueryRowContext(ctx, articleSelect+` WHERE id = $1`, id)
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return a, nil
}

// InsertIfAbsent is idempotent on (feed_id, url): an existing row is
// returned with empty title/description/comments_url backfilled from the
// candidate, mirroring the original's merge-on-conflict behavior.
func (r *ArticleRepo) InsertIfAbsent(ctx context.Context, a *entity.Article) (*entity.Article, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
INSERT INTO articles (feed_id, title, url, description, comments_url, pub_date, updated)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (feed_id, url) DO NOTHING
RETURNING id`,
		a.FeedID, a.Title, a.URL, a.Description, a.CommentsURL, a.PubDate, a.Updated).Scan(&id)

	if err == nil {
		a.ID = id
		return a, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("InsertIfAbsent: %w", err)
	}

	existing, err := r.findByFeedAndURL(ctx, a.FeedID, a.URL)
	if err != nil {
		return nil, fmt.Errorf("InsertIfAbsent: %w", err)
	}
	changed := false
	if existing.Title == "" && a.Title != "" {
		existing.Title = a.Title
		changed = true
	}
	if existing.Description == "" && a.Description != "" {
		existing.Description = a.Description
		changed = true
	}
	if existing.CommentsURL == "" && a.CommentsURL != "" {
		existing.CommentsURL = a.CommentsURL
		changed = true
	}
	if changed {
		if err := r.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("InsertIfAbsent: backfill: %w", err)
		}
	}
	return existing, nil
}

func (r *ArticleRepo) findByFeedAndURL(ctx context.Context, feedID int64, url string) (*entity.Article, error) {
	row := r.db.QueryRowContext(ctx, articleSelect+` WHERE feed_id = $1 AND url = $2`, feedID, url)
	return scanArticle(row)
}

func (r *ArticleRepo) Update(ctx context.Context, a *entity.Article) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE articles SET title = $1, description = $2, comments_url = $3, pub_date = $4, updated = $5
WHERE id = $6`, a.Title, a.Description, a.CommentsURL, a.PubDate, a.Updated, a.ID)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	return nil
}

// SetEmbedding writes the canonical JSON column and, best-effort, mirrors
// into the pgvector column so a future similarity-search index can use it
// without a backfill pass.
func (r *ArticleRepo) SetEmbedding(ctx context.Context, id int64, embedding []float32) error {
	b, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("SetEmbedding: marshal: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `UPDATE articles SET embedding = $1 WHERE id = $2`, string(b), id)
	if err != nil {
		return fmt.Errorf("SetEmbedding: %w", err)
	}
	vec := pgvector.NewVector(embedding)
	_, _ = r.db.ExecContext(ctx, `UPDATE articles SET embedding_vec = $1 WHERE id = $2`, vec, id)
	return nil
}

func (r *ArticleRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

func (r *ArticleRepo) ListRecent(ctx context.Context, feedID int64, n int) ([]*entity.Article, error) {
	rows, err := r.db.QueryContext(ctx, articleSelect+`
WHERE feed_id = $1
ORDER BY COALESCE(pub_date, updated) DESC, id DESC
LIMIT $2`, feedID, n)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

func (r *ArticleRepo) ExistsByURLBatch(ctx context.Context, feedID int64, urls []string) (map[string]bool, error) {
	result := make(map[string]bool, len(urls))
	for _, u := range urls {
		result[u] = false
	}
	if len(urls) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT url FROM articles WHERE feed_id = $1 AND url = ANY($2)`, feedID, pq.Array(urls))
	if err != nil {
		return nil, fmt.Errorf("ExistsByURLBatch: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("ExistsByURLBatch: scan: %w", err)
		}
		result[u] = true
	}
	return result, rows.Err()
}

func (r *ArticleRepo) WithoutEmbedding(ctx context.Context, limit int) ([]*entity.Article, error) {
	rows, err := r.db.QueryContext(ctx, articleSelect+` WHERE embedding IS NULL LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("WithoutEmbedding: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

func (r *ArticleRepo) DeleteUnreadOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
DELETE FROM articles
WHERE COALESCE(pub_date, updated) < $1
  AND id NOT IN (SELECT article_id FROM user_article_links)`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("DeleteUnreadOlderThan: %w", err)
	}
	return res.RowsAffected()
}

func (r *ArticleRepo) ClearEmbeddingsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE articles SET embedding = NULL, embedding_vec = NULL
WHERE embedding IS NOT NULL AND COALESCE(pub_date, updated) < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("ClearEmbeddingsOlderThan: %w", err)
	}
	return res.RowsAffected()
}

func (r *ArticleRepo) CountArticles(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountArticles: %w", err)
	}
	return n, nil
}

func (r *ArticleRepo) CountWithEmbedding(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles WHERE embedding IS NOT NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountWithEmbedding: %w", err)
	}
	return n, nil
}

func scanArticles(rows *sql.Rows) ([]*entity.Article, error) {
	articles := make([]*entity.Article, 0, 32)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func scanArticle(row rowScanner) (*entity.Article, error) {
	var a entity.Article
	var pubDate sql.NullTime
	var embedding sql.NullString
	if err := row.Scan(&a.ID, &a.FeedID, &a.Title, &a.URL, &a.Description, &a.CommentsURL,
		&pubDate, &a.Updated, &embedding); err != nil {
		return nil, err
	}
	if pubDate.Valid {
		t := pubDate.Time
		a.PubDate = &t
	}
	if embedding.Valid && strings.TrimSpace(embedding.String) != "" {
		if err := json.Unmarshal([]byte(embedding.String), &a.Embedding); err != nil {
			return nil, fmt.Errorf("unmarshal embedding: %w", err)
		}
	}
	return &a, nil
}
