// Package migrations applies the embedded schema of the run and price stores.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// PostgresFS embeds the PostgreSQL migration files.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the ClickHouse migration files.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

// migration is one embedded SQL file.
type migration struct {
	Version string // file name without extension, e.g. 001_backtest_runs
	SQL     string
}

// load returns the .sql files of dir in lexical order.
func load(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	out := make([]migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		out = append(out, migration{
			Version: strings.TrimSuffix(name, ".sql"),
			SQL:     string(data),
		})
	}
	return out, nil
}
