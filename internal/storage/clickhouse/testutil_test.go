package clickhouse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a ClickHouse container and returns a connection.
// Returns a cleanup function that must be called when done.
func setupTestDB(t *testing.T) (*Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60*time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_DB":       "test",
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	conn, err := NewConn(ctx, fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port()))
	require.NoError(t, err)

	runMigrations(t, conn)

	cleanup := func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}

	return conn, cleanup
}

// runMigrations applies the SQL files of internal/storage/migrations/clickhouse.
func runMigrations(t *testing.T, conn *Conn) {
	t.Helper()
	ctx := context.Background()

	dir := filepath.Join(findProjectRoot(t), "internal", "storage", "migrations", "clickhouse")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err, "failed to read migrations directory")

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		require.NoError(t, err)

		for _, stmt := range strings.Split(string(content), ";") {
			if !hasSQL(stmt) {
				continue
			}
			require.NoError(t, conn.Exec(ctx, stmt), "failed to apply migration %s", entry.Name())
		}
	}
}

// hasSQL reports whether stmt contains anything besides blanks and comments.
func hasSQL(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "--") {
			return true
		}
	}
	return false
}

// findProjectRoot walks up from current directory to find go.mod.
func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err, "failed to get working directory")

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}
