package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"feedproxy/internal/domain/entity"
)

type FeedRepo struct {
	db *sql.DB
}

func NewFeedRepo(db *sql.DB) *FeedRepo {
	return &FeedRepo{db: db}
}

func (r *FeedRepo) Get(ctx context.Context, id int64) (*entity.Feed, error) {
	row := r.db.QueryRowContext(ctx, feedSelect+` WHERE id = ?`, id)
	f, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return f, nil
}

func (r *FeedRepo) FindByURL(ctx context.Context, url string) (*entity.Feed, error) {
	row := r.db.QueryRowContext(ctx, feedSelect+` WHERE url = ? OR original_url = ?`, url, url)
	f, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindByURL: %w", err)
	}
	return f, nil
}

func (r *FeedRepo) Upsert(ctx context.Context, canonicalURL string) (*entity.Feed, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO feeds (url, created_at, updated_at) VALUES (?, ?, ?)
ON CONFLICT(url) DO NOTHING`, canonicalURL, now, now)
	if err != nil {
		return nil, fmt.Errorf("Upsert: %w", err)
	}
	return r.FindByURL(ctx, canonicalURL)
}

func (r *FeedRepo) Update(ctx context.Context, f *entity.Feed) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE feeds SET url = ?, original_url = ?, title = ?, description = ?, language = ?, logo = ?,
  updated_at = ?, consecutive_failures = ?, last_error = ?, is_disabled = ?
WHERE id = ?`,
		f.URL, f.OriginalURL, f.Title, f.Description, f.Language, f.Logo,
		f.UpdatedAt, f.ConsecutiveFailures, f.LastError, f.IsDisabled, f.ID)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	return nil
}

func (r *FeedRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM feeds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

func (r *FeedRepo) ListDisabled(ctx context.Context) ([]*entity.Feed, error) {
	return r.queryList(ctx, feedSelect+` WHERE is_disabled = 1`)
}

func (r *FeedRepo) List(ctx context.Context) ([]*entity.Feed, error) {
	return r.queryList(ctx, feedSelect)
}

func (r *FeedRepo) ListStale(ctx context.Context, interval time.Duration, now time.Time, limit int) ([]*entity.Feed, error) {
	cutoff := now.Add(-interval)
	return r.queryList(ctx, feedSelect+` WHERE is_disabled = 0 AND updated_at <= ? ORDER BY updated_at ASC LIMIT ?`, cutoff, limit)
}

func (r *FeedRepo) RenameURL(ctx context.Context, feedID int64, newURL string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE feeds SET original_url = CASE WHEN original_url = '' THEN url ELSE original_url END, url = ?
WHERE id = ?`, newURL, feedID)
	if err != nil {
		return fmt.Errorf("RenameURL: %w", err)
	}
	return nil
}

func (r *FeedRepo) CountFeeds(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feeds`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountFeeds: %w", err)
	}
	return n, nil
}

func (r *FeedRepo) queryList(ctx context.Context, query string, args ...any) ([]*entity.Feed, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("queryList: %w", err)
	}
	defer rows.Close()

	feeds := make([]*entity.Feed, 0, 32)
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("queryList: scan: %w", err)
		}
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

const feedSelect = `
SELECT id, url, original_url, title, description, language, logo, created_at, updated_at,
       consecutive_failures, last_error, is_disabled
FROM feeds`

func scanFeed(row rowScanner) (*entity.Feed, error) {
	var f entity.Feed
	var isDisabled bool
	if err := row.Scan(&f.ID, &f.URL, &f.OriginalURL, &f.Title, &f.Description, &f.Language, &f.Logo,
		&f.CreatedAt, &f.UpdatedAt, &f.ConsecutiveFailures, &f.LastError, &isDisabled); err != nil {
		return nil, err
	}
	f.IsDisabled = isDisabled
	return &f, nil
}
