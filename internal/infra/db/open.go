// Package db opens the backend selected by DATABASE_URL: sqlite:// (or a
// bare file path) for the embedded default, postgres://|postgresql:// for
// the alternate backend.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Backend identifies which SQL dialect a *sql.DB speaks, since the two
// adapters use different placeholder syntax and pragmas.
type Backend int

const (
	BackendSQLite Backend = iota
	BackendPostgres
)

// ConnectionConfig holds database connection pool configuration.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConnectionConfig returns the default connection pool configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}

// Open creates and configures a new database connection pool from
// DATABASE_URL, dispatching on its scheme, and returns the resolved
// Backend so callers can pick the matching repository adapter set.
func Open() (*sql.DB, Backend) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}

	driver, backend, dsn := resolveDriver(dsn)

	database, err := sql.Open(driver, dsn)
	if err != nil {
		log.Fatal(err)
	}

	cfg := getConnectionConfigFromEnv()
	database.SetMaxOpenConns(cfg.MaxOpenConns)
	database.SetMaxIdleConns(cfg.MaxIdleConns)
	database.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	database.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if backend == BackendSQLite {
		// A single-file database cannot serve more than one writer at a
		// time regardless of pool size; cap it so busy errors surface
		// through the retry middleware instead of queuing indefinitely
		// inside database/sql.
		database.SetMaxOpenConns(1)
		if _, err := database.Exec("PRAGMA journal_mode=WAL"); err != nil {
			log.Fatalf("failed to enable WAL: %v", err)
		}
		if _, err := database.Exec("PRAGMA busy_timeout=30000"); err != nil {
			log.Fatalf("failed to set busy_timeout: %v", err)
		}
	}

	slog.Info("database connection pool configured",
		slog.String("backend", backendName(backend)),
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
		slog.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
		slog.Duration("conn_max_idle_time", cfg.ConnMaxIdleTime))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := database.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	slog.Info("database connection established successfully")
	return database, backend
}

func resolveDriver(dsn string) (driver string, backend Backend, cleanDSN string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "pgx", BackendPostgres, dsn
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite", BackendSQLite, strings.TrimPrefix(dsn, "sqlite://")
	case strings.HasPrefix(dsn, "file:"):
		return "sqlite", BackendSQLite, dsn
	default:
		// bare filesystem path: treat as sqlite, the default backend.
		return "sqlite", BackendSQLite, dsn
	}
}

func backendName(b Backend) string {
	if b == BackendPostgres {
		return "postgres"
	}
	return "sqlite"
}

// IsBusyError reports whether err represents transient write contention on
// either backend: SQLite's SQLITE_BUSY/SQLITE_LOCKED, or Postgres's
// serialization_failure (40001) / lock_not_available (55P03).
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "sqlite_locked") ||
		strings.Contains(msg, "40001") ||
		strings.Contains(msg, "55p03") ||
		strings.Contains(msg, "could not serialize access") ||
		strings.Contains(msg, "could not obtain lock")
}

func getConnectionConfigFromEnv() ConnectionConfig {
	cfg := DefaultConnectionConfig()

	if maxOpen := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpen != "" {
		if val, err := strconv.Atoi(maxOpen); err == nil && val > 0 {
			cfg.MaxOpenConns = val
		}
	}
	if maxIdle := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdle != "" {
		if val, err := strconv.Atoi(maxIdle); err == nil && val > 0 {
			cfg.MaxIdleConns = val
		}
	}
	if lifetime := os.Getenv("DB_CONN_MAX_LIFETIME"); lifetime != "" {
		if val, err := time.ParseDuration(lifetime); err == nil && val > 0 {
			cfg.ConnMaxLifetime = val
		}
	}
	if idleTime := os.Getenv("DB_CONN_MAX_IDLE_TIME"); idleTime != "" {
		if val, err := time.ParseDuration(idleTime); err == nil && val > 0 {
			cfg.ConnMaxIdleTime = val
		}
	}

	return cfg
}

// ErrUnknownBackend is returned by adapter factories given a Backend value
// outside {BackendSQLite, BackendPostgres}.
var ErrUnknownBackend = fmt.Errorf("unknown database backend")
