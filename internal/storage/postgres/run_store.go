package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
// Config and summary are stored as JSONB documents.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunRecord) (err error) {
	if r == nil || r.RunID == "" || r.RunName == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() { observe("insert_run", start, err) }()

	return insertRun(ctx, s.pool, r)
}

// execer is implemented by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertRun(ctx context.Context, db execer, r *domain.RunRecord) error {
	cfg, err := json.Marshal(r.Config)
	if err != nil {
		return fmt.Errorf("marshal run config: %w", err)
	}
	summary, err := json.Marshal(r.Summary)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}

	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = db.Exec(ctx, `
		INSERT INTO backtest_runs (run_id, run_name, config, summary, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.RunID, r.RunName, cfg, summary, r.Duration.Milliseconds(), createdAt.UTC())
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (_ *domain.RunRecord, err error) {
	start := time.Now()
	defer func() { observe("select_run", start, err) }()

	row := s.pool.QueryRow(ctx, `
		SELECT run_id, run_name, config, summary, duration_ms, created_at
		FROM backtest_runs
		WHERE run_id = $1
	`, runID)

	r, err := scanRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run by id: %w", err)
	}
	return r, nil
}

// GetByName retrieves all runs with the given name, ordered by creation time ASC.
func (s *RunStore) GetByName(ctx context.Context, runName string) (_ []*domain.RunRecord, err error) {
	start := time.Now()
	defer func() { observe("select_runs_by_name", start, err) }()

	rows, err := s.pool.Query(ctx, `
		SELECT run_id, run_name, config, summary, duration_ms, created_at
		FROM backtest_runs
		WHERE run_name = $1
		ORDER BY created_at ASC, run_id ASC
	`, runName)
	if err != nil {
		return nil, fmt.Errorf("get runs by name: %w", err)
	}
	defer rows.Close()

	var runs []*domain.RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// scanRun scans a single row into a RunRecord.
func scanRun(row pgx.Row) (*domain.RunRecord, error) {
	var (
		r          domain.RunRecord
		cfg        []byte
		summary    []byte
		durationMs int64
	)
	if err := row.Scan(&r.RunID, &r.RunName, &cfg, &summary, &durationMs, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cfg, &r.Config); err != nil {
		return nil, fmt.Errorf("decode run config: %w", err)
	}
	if err := json.Unmarshal(summary, &r.Summary); err != nil {
		return nil, fmt.Errorf("decode run summary: %w", err)
	}
	r.Duration = time.Duration(durationMs) * time.Millisecond
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}
