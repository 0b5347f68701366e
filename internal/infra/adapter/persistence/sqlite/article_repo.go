package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

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
	row := r.db.QueryRowContext(ctx, articleSelect+` WHERE id = ?`, id)
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
	res, err := r.db.ExecContext(ctx, `
INSERT INTO articles (feed_id, title, url, description, comments_url, pub_date, updated)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(feed_id, url) DO NOTHING`,
		a.FeedID, a.Title, a.URL, a.Description, a.CommentsURL, a.PubDate, a.Updated)
	if err != nil {
		return nil, fmt.Errorf("InsertIfAbsent: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("InsertIfAbsent: %w", err)
		}
		a.ID = id
		return a, nil
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
	row := r.db.QueryRowContext(ctx, articleSelect+` WHERE feed_id = ? AND url = ?`, feedID, url)
	return scanArticle(row)
}

func (r *ArticleRepo) Update(ctx context.Context, a *entity.Article) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE articles SET title = ?, description = ?, comments_url = ?, pub_date = ?, updated = ?
WHERE id = ?`, a.Title, a.Description, a.CommentsURL, a.PubDate, a.Updated, a.ID)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	return nil
}

func (r *ArticleRepo) SetEmbedding(ctx context.Context, id int64, embedding []float32) error {
	b, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("SetEmbedding: marshal: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `UPDATE articles SET embedding = ? WHERE id = ?`, string(b), id)
	if err != nil {
		return fmt.Errorf("SetEmbedding: %w", err)
	}
	return nil
}

func (r *ArticleRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

func (r *ArticleRepo) ListRecent(ctx context.Context, feedID int64, n int) ([]*entity.Article, error) {
	rows, err := r.db.QueryContext(ctx, articleSelect+`
WHERE feed_id = ?
ORDER BY COALESCE(pub_date, updated) DESC, id DESC
LIMIT ?`, feedID, n)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// maxSQLiteVars is conservative headroom under SQLite's default
// SQLITE_MAX_VARIABLE_NUMBER of 999 bind parameters per statement.
const maxSQLiteVars = 900

func (r *ArticleRepo) ExistsByURLBatch(ctx context.Context, feedID int64, urls []string) (map[string]bool, error) {
	result := make(map[string]bool, len(urls))
	for _, u := range urls {
		result[u] = false
	}
	if len(urls) == 0 {
		return result, nil
	}
	if len(urls) > maxSQLiteVars-1 {
		return nil, fmt.Errorf("ExistsByURLBatch: batch of %d exceeds sqlite placeholder limit", len(urls))
	}

	placeholders := make([]string, len(urls))
	args := make([]any, 0, len(urls)+1)
	args = append(args, feedID)
	for i, u := range urls {
		placeholders[i] = "?"
		args = append(args, u)
	}
	query := fmt.Sprintf(`SELECT url FROM articles WHERE feed_id = ? AND url IN (%s)`, strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
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
	rows, err := r.db.QueryContext(ctx, articleSelect+` WHERE embedding IS NULL LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("WithoutEmbedding: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

func (r *ArticleRepo) DeleteUnreadOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
DELETE FROM articles
WHERE COALESCE(pub_date, updated) < ?
  AND id NOT IN (SELECT article_id FROM user_article_links)`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("DeleteUnreadOlderThan: %w", err)
	}
	return res.RowsAffected()
}

func (r *ArticleRepo) ClearEmbeddingsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE articles SET embedding = NULL WHERE embedding IS NOT NULL AND COALESCE(pub_date, updated) < ?`, cutoff)
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
