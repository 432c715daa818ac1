package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/police-records/registry/internal/app"
	"github.com/police-records/registry/migrations"
)

const createVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    name       TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping migrations")
		return
	}

	dryRun := flag.Bool("dry-run", false, "list pending migrations without applying them")
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	conn, err := sql.Open("postgres", cfg.PGDSN)
	if err != nil {
		logger.Error("open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Warn("close database", slog.Any("error", err))
		}
	}()

	if err := conn.PingContext(ctx); err != nil {
		logger.Error("ping database", slog.Any("error", err))
		os.Exit(1)
	}

	applied, err := migrate(ctx, conn, *dryRun, logger)
	if err != nil {
		logger.Error("migrate", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("migrations complete", slog.Int("applied", applied), slog.Bool("dry_run", *dryRun))
}

func migrate(ctx context.Context, conn *sql.DB, dryRun bool, logger *slog.Logger) (int, error) {
	if _, err := conn.ExecContext(ctx, createVersionTable); err != nil {
		return 0, fmt.Errorf("migrate: version table: %w", err)
	}
	done, err := appliedNames(ctx, conn)
	if err != nil {
		return 0, err
	}
	names, err := migrations.Names()
	if err != nil {
		return 0, fmt.Errorf("migrate: list files: %w", err)
	}
	todo := pending(names, done)
	if dryRun {
		for _, name := range todo {
			logger.Info("pending migration", slog.String("name", name))
		}
		return 0, nil
	}
	for _, name := range todo {
		if err := applyOne(ctx, conn, name); err != nil {
			return 0, err
		}
		logger.Info("applied migration", slog.String("name", name))
	}
	return len(todo), nil
}

func appliedNames(ctx context.Context, conn *sql.DB) (map[string]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("migrate: read versions: %w", err)
	}
	defer rows.Close()
	done := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("migrate: scan version: %w", err)
		}
		done[name] = true
	}
	return done, rows.Err()
}

// pending keeps the order of names.
func pending(names []string, done map[string]bool) []string {
	var out []string
	for _, name := range names {
		if !done[name] {
			out = append(out, name)
		}
	}
	return out
}

func applyOne(ctx context.Context, conn *sql.DB, name string) error {
	body, err := migrations.Files.ReadFile(name)
	if err != nil {
		return fmt.Errorf("migrate: read %s: %w", name, err)
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return fmt.Errorf("migrate: apply %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("migrate: record %s: %w", name, err)
	}
	return tx.Commit()
}
