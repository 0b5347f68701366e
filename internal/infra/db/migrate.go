package db

import "database/sql"

// MigrateUp creates the schema backing internal/repository: users, feeds,
// articles, and the two link tables. Every statement is idempotent
// (IF NOT EXISTS), so it is safe to call on every startup rather than
// tracking applied versions.
func MigrateUp(db *sql.DB, backend Backend) error {
	timestampType := "TIMESTAMP"
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	boolType := "INTEGER"
	if backend == BackendPostgres {
		timestampType = "TIMESTAMPTZ"
		serial = "BIGSERIAL PRIMARY KEY"
		boolType = "BOOLEAN"
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS users (
    id              TEXT PRIMARY KEY,
    created_at      ` + timestampType + ` NOT NULL,
    last_request    ` + timestampType + ` NOT NULL,
    clusters        TEXT,
    clusters_at     ` + timestampType + `,
    is_frozen       ` + boolType + ` NOT NULL DEFAULT 0,
    frozen_at       ` + timestampType + `
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS feeds (
    id                    ` + serial + `,
    url                   TEXT NOT NULL UNIQUE,
    original_url          TEXT NOT NULL DEFAULT '',
    title                 TEXT NOT NULL DEFAULT '',
    description           TEXT NOT NULL DEFAULT '',
    language              TEXT NOT NULL DEFAULT '',
    logo                  TEXT NOT NULL DEFAULT '',
    created_at            ` + timestampType + ` NOT NULL,
    updated_at            ` + timestampType + ` NOT NULL,
    consecutive_failures  INTEGER NOT NULL DEFAULT 0,
    last_error            TEXT NOT NULL DEFAULT '',
    is_disabled           ` + boolType + ` NOT NULL DEFAULT 0
)`); err != nil {
		return err
	}

	articleEmbeddingVec := ""
	if backend == BackendPostgres {
		articleEmbeddingVec = ",\n    embedding_vec vector(1536)"
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS articles (
    id            ` + serial + `,
    feed_id       INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
    title         TEXT NOT NULL DEFAULT '',
    url           TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    comments_url  TEXT NOT NULL DEFAULT '',
    pub_date      ` + timestampType + `,
    updated       ` + timestampType + ` NOT NULL,
    embedding     TEXT` + articleEmbeddingVec + `,
    UNIQUE(feed_id, url)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS user_feed_links (
    user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    feed_id     INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
    created_at  ` + timestampType + ` NOT NULL,
    PRIMARY KEY (user_id, feed_id)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS user_article_links (
    user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    article_id  INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
    created_at  ` + timestampType + ` NOT NULL
)`); err != nil {
		return err
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_feeds_updated_at ON feeds(updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_feeds_is_disabled ON feeds(is_disabled)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_feed_id_pub_date ON articles(feed_id, pub_date DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_user_article_links_user_id ON user_article_links(user_id, created_at DESC)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	if backend == BackendPostgres {
		// Best-effort: an instance without the extension installed still
		// gets the rest of the schema, and the canonical embedding column
		// (JSON text) keeps working without it.
		_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`)
		_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_articles_embedding_vec
    ON articles USING ivfflat (embedding_vec vector_cosine_ops) WITH (lists = 100)`)
	}

	return nil
}
