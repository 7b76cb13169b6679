package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// gooseRun is a seam for testing goose.RunContext.
var gooseRun = func(ctx context.Context, command string, db *sql.DB, dir string, args ...string) error {
	return goose.RunContext(ctx, command, db, dir, args...)
}

// Migrate applies every pending migration.
func (db *DB) Migrate(ctx context.Context) error {
	return db.RunMigrations(ctx, "up")
}

// RunMigrations executes a goose command ("up", "down", "status", "version", ...)
// against the embedded migrations.
func (db *DB) RunMigrations(ctx context.Context, command string, args ...string) error {
	if db == nil || db.Pool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer func() { _ = sqlDB.Close() }()

	if err := gooseRun(ctx, command, sqlDB, migrationsDir, args...); err != nil {
		return fmt.Errorf("run migrations %s: %w", command, err)
	}

	slog.Info("database migrations finished", "command", command)
	return nil
}
