// Package store is the embedded persistence layer: a single SQLite file
// holding encrypted credentials, usage history, the model catalog and
// suggestions, and per-provider health state. Grounded on
// original_source/src/database.rs for the schema and on
// repositories/postgres/connection.go for the Go wrapper shape.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // embedded SQLite driver
	"go.uber.org/zap"

	"github.com/dnovak/llmrelay/internal/domain"
)

// DB wraps the sql.DB connection to the embedded store.
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// Open opens (creating if necessary) the SQLite file at path, applies pool
// settings suited to a single-process embedded store, and bootstraps the
// schema.
func Open(ctx context.Context, path string, logger *zap.Logger) (*DB, error) {
	if err := ensureParentDir(path); err != nil {
		logger.Warn("failed to create database directory", zap.String("path", path), zap.Error(err))
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL", path)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, domain.WrapPersistence("failed to open database", err)
	}

	// SQLite has a single writer; a small pool avoids "database is locked"
	// errors under concurrent access better than the default unbounded pool.
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, domain.WrapPersistence("failed to ping database", err)
	}

	db := &DB{DB: sqlDB, logger: logger}
	if err := db.EnsureSchema(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger.Info("embedded store opened", zap.String("path", path))
	return db, nil
}

func ensureParentDir(path string) error {
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	db.logger.Info("closing embedded store")
	return db.DB.Close()
}

// HealthCheck verifies the store can serve a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return domain.WrapPersistence("health check ping failed", err)
	}
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return domain.WrapPersistence("health check query failed", err)
	}
	return nil
}

// Stats returns connection pool statistics.
func (db *DB) Stats() sql.DBStats { return db.DB.Stats() }

// EnsureSchema creates every table and index this system needs if they
// don't already exist, and migrates provider_usage's optional columns in
// for databases created before those columns existed. Grounded on
// original_source/src/database.rs::ensure_schema +
// migrate_provider_usage_columns.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return domain.WrapPersistence("failed to apply schema statement", err)
		}
	}
	if err := db.migrateUsageColumns(ctx); err != nil {
		return err
	}
	for _, stmt := range indexStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return domain.WrapPersistence("failed to create index", err)
		}
	}
	return nil
}

var optionalUsageColumns = []struct {
	name string
	kind string
}{
	{"model", "TEXT"},
	{"prompt_tokens", "INTEGER"},
	{"completion_tokens", "INTEGER"},
	{"total_tokens", "INTEGER"},
	{"input_cost_micros", "INTEGER"},
	{"output_cost_micros", "INTEGER"},
	{"total_cost_micros", "INTEGER"},
}

func (db *DB) migrateUsageColumns(ctx context.Context) error {
	for _, col := range optionalUsageColumns {
		probe := fmt.Sprintf("SELECT %s FROM provider_usage LIMIT 1", col.name)
		rows, err := db.QueryContext(ctx, probe)
		if err == nil {
			_ = rows.Close()
			continue
		}
		alter := fmt.Sprintf("ALTER TABLE provider_usage ADD COLUMN %s %s", col.name, col.kind)
		if _, err := db.ExecContext(ctx, alter); err != nil {
			return domain.WrapPersistence("failed to migrate provider_usage column "+col.name, err)
		}
	}
	return nil
}
