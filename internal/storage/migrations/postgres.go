package migrations

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"signal-backtest-lab/internal/storage/postgres"
)

const createVersionTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version     TEXT PRIMARY KEY,
		applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// RunPostgresMigrations applies every embedded migration not yet recorded in
// schema_migrations, each in its own transaction. Returns the applied versions.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) ([]string, error) {
	files, err := load(PostgresFS, "postgres")
	if err != nil {
		return nil, err
	}

	if _, err := pool.Exec(ctx, createVersionTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []string
	for _, m := range files {
		if strings.TrimSpace(m.SQL) == "" {
			continue
		}
		done, err := applyPostgres(ctx, pool, m)
		if err != nil {
			return applied, err
		}
		if done {
			applied = append(applied, m.Version)
		}
	}
	return applied, nil
}

// applyPostgres runs m unless its version is already recorded.
func applyPostgres(ctx context.Context, pool *postgres.Pool, m migration) (bool, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", m.Version, err)
	}
	if exists {
		return false, nil
	}

	if _, err := tx.Exec(ctx, m.SQL, pgx.QueryExecModeSimpleProtocol); err != nil {
		return false, fmt.Errorf("apply migration %s: %w", m.Version, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
		return false, fmt.Errorf("record migration %s: %w", m.Version, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit migration %s: %w", m.Version, err)
	}
	return true, nil
}
