package migrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	chstore "signal-backtest-lab/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the database named in dsn if missing and
// applies every embedded migration. ClickHouse migrations must be idempotent.
// Returns a connection to the target database for reuse.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}

	files, err := load(ClickhouseFS, "clickhouse")
	if err != nil {
		return nil, err
	}

	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	if err := admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName)); err != nil {
		admin.Close()
		return nil, fmt.Errorf("create database %s: %w", dbName, err)
	}
	if err := admin.Close(); err != nil {
		return nil, fmt.Errorf("close admin connection: %w", err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}

	for _, m := range files {
		if err := validateNoSemicolonInStrings(m.SQL); err != nil {
			conn.Close()
			return nil, fmt.Errorf("validate migration %s: %w", m.Version, err)
		}
		// The driver executes one statement per call.
		for _, stmt := range splitStatements(m.SQL) {
			if err := conn.Exec(ctx, stmt); err != nil {
				conn.Close()
				return nil, fmt.Errorf("apply migration %s: %w", m.Version, err)
			}
		}
	}

	return conn, nil
}

// splitStatements drops blank and -- comment lines and splits the rest on
// semicolons. Semicolons inside string literals or block comments are not
// supported; validateNoSemicolonInStrings rejects the former.
func splitStatements(input string) []string {
	var kept []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		kept = append(kept, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings fails when a single-quoted literal contains a semicolon.
func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			if inString && i+1 < len(sql) && sql[i+1] == '\'' {
				i++ // escaped quote
				continue
			}
			inString = !inString
		case ';':
			if inString {
				return fmt.Errorf("semicolon inside string literal at offset %d", i)
			}
		}
	}
	return nil
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
