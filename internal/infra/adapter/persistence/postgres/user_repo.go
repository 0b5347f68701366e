// Package postgres implements internal/repository against database/sql, the
// alternate backend. Uses $N placeholders and wraps errors as "Method: %w".
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"feedproxy/internal/domain/entity"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Upsert(ctx context.Context, id string) (*entity.User, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, created_at, last_request, is_frozen) VALUES ($1, $2, $3, FALSE)
ON CONFLICT (id) DO NOTHING`, id, now, now)
	if err != nil {
		return nil, fmt.Errorf("Upsert: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *UserRepo) Get(ctx context.Context, id string) (*entity.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, created_at, last_request, clusters, clusters_at, is_frozen, frozen_at
FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return u, nil
}

func (r *UserRepo) Touch(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_request = $1, is_frozen = FALSE WHERE id = $2`, now, id)
	if err != nil {
		return fmt.Errorf("Touch: %w", err)
	}
	return nil
}

func (r *UserRepo) SetFrozen(ctx context.Context, id string, frozen bool, at time.Time) error {
	frozenAt := sql.NullTime{Time: at, Valid: frozen}
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_frozen = $1, frozen_at = $2 WHERE id = $3`, frozen, frozenAt, id)
	if err != nil {
		return fmt.Errorf("SetFrozen: %w", err)
	}
	return nil
}

func (r *UserRepo) SetClusters(ctx context.Context, id string, clusters [][]float32, at time.Time) error {
	b, err := json.Marshal(clusters)
	if err != nil {
		return fmt.Errorf("SetClusters: marshal: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `UPDATE users SET clusters = $1, clusters_at = $2 WHERE id = $3`, string(b), at, id)
	if err != nil {
		return fmt.Errorf("SetClusters: %w", err)
	}
	return nil
}

func (r *UserRepo) ListDormant(ctx context.Context, threshold time.Duration, now time.Time) ([]*entity.User, error) {
	cutoff := now.Add(-threshold)
	rows, err := r.db.QueryContext(ctx, `
SELECT id, created_at, last_request, clusters, clusters_at, is_frozen, frozen_at
FROM users WHERE is_frozen = FALSE AND last_request <= $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("ListDormant: %w", err)
	}
	defer rows.Close()

	users := make([]*entity.User, 0, 16)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ListDormant: scan: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepo) ListInactive(ctx context.Context, threshold time.Duration, now time.Time) ([]string, error) {
	cutoff := now.Add(-threshold)
	rows, err := r.db.QueryContext(ctx, `
SELECT u.id FROM users u
WHERE u.last_request <= $1
  AND NOT EXISTS (SELECT 1 FROM user_feed_links f WHERE f.user_id = u.id)
  AND NOT EXISTS (SELECT 1 FROM user_article_links a WHERE a.user_id = u.id)`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("ListInactive: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 16)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ListInactive: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

func (r *UserRepo) LinkFeed(ctx context.Context, userID string, feedID int64) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO user_feed_links (user_id, feed_id, created_at) VALUES ($1, $2, $3)
ON CONFLICT (user_id, feed_id) DO NOTHING`, userID, feedID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("LinkFeed: %w", err)
	}
	return nil
}

func (r *UserRepo) LinkArticle(ctx context.Context, userID string, articleID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO user_article_links (user_id, article_id, created_at) VALUES ($1, $2, $3)`, userID, articleID, at)
	if err != nil {
		return fmt.Errorf("LinkArticle: %w", err)
	}
	return nil
}

func (r *UserRepo) ArticleClickCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_article_links WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ArticleClickCount: %w", err)
	}
	return n, nil
}

func (r *UserRepo) ReadArticles(ctx context.Context, userID string, limit int) ([]*entity.Article, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT a.id, a.feed_id, a.title, a.url, a.description, a.comments_url, a.pub_date, a.updated, a.embedding
FROM articles a
JOIN user_article_links l ON l.article_id = a.id
WHERE l.user_id = $1
ORDER BY l.created_at DESC
LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ReadArticles: %w", err)
	}
	defer rows.Close()

	articles := make([]*entity.Article, 0, limit)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("ReadArticles: scan: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func (r *UserRepo) CleanupOrphanArticleLinks(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
DELETE FROM user_article_links WHERE article_id NOT IN (SELECT id FROM articles)`)
	if err != nil {
		return 0, fmt.Errorf("CleanupOrphanArticleLinks: %w", err)
	}
	return res.RowsAffected()
}

func (r *UserRepo) CleanupOrphanFeedLinks(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
DELETE FROM user_feed_links WHERE feed_id NOT IN (SELECT id FROM feeds)`)
	if err != nil {
		return 0, fmt.Errorf("CleanupOrphanFeedLinks: %w", err)
	}
	return res.RowsAffected()
}

func (r *UserRepo) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountUsers: %w", err)
	}
	return n, nil
}

func (r *UserRepo) CountFrozenUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE is_frozen = TRUE`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountFrozenUsers: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*entity.User, error) {
	var u entity.User
	var clusters sql.NullString
	var clustersAt sql.NullTime
	var isFrozen bool
	var frozenAt sql.NullTime
	if err := row.Scan(&u.ID, &u.CreatedAt, &u.LastRequest, &clusters, &clustersAt, &isFrozen, &frozenAt); err != nil {
		return nil, err
	}
	u.IsFrozen = isFrozen
	if clustersAt.Valid {
		t := clustersAt.Time
		u.ClustersAt = &t
	}
	if frozenAt.Valid {
		t := frozenAt.Time
		u.FrozenAt = &t
	}
	if clusters.Valid && strings.TrimSpace(clusters.String) != "" {
		if err := json.Unmarshal([]byte(clusters.String), &u.Clusters); err != nil {
			return nil, fmt.Errorf("unmarshal clusters: %w", err)
		}
	}
	return &u, nil
}
