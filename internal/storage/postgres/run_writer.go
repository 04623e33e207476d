package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// RunWriter implements storage.RunWriter: the run row and its trades are
// written in one transaction.
type RunWriter struct {
	pool *Pool
}

// NewRunWriter creates a new RunWriter.
func NewRunWriter(pool *Pool) *RunWriter {
	return &RunWriter{pool: pool}
}

// Compile-time interface check.
var _ storage.RunWriter = (*RunWriter)(nil)

// InsertRun stores r and trades, or nothing when any insert fails.
func (w *RunWriter) InsertRun(ctx context.Context, r *domain.RunRecord, trades []*domain.TradeRecord) (err error) {
	if r == nil || r.RunID == "" || r.RunName == "" {
		return storage.ErrInvalidInput
	}
	if err := validateTrades(trades); err != nil {
		return err
	}
	for _, t := range trades {
		if t.RunID != r.RunID {
			return fmt.Errorf("%w: trade %s belongs to run %s, not %s", storage.ErrInvalidInput, t.TradeID, t.RunID, r.RunID)
		}
	}

	start := time.Now()
	defer func() { observe("insert_run_with_trades", start, err) }()

	return pgx.BeginFunc(ctx, w.pool, func(tx pgx.Tx) error {
		if err := insertRun(ctx, tx, r); err != nil {
			return err
		}
		if len(trades) == 0 {
			return nil
		}
		return copyTrades(ctx, tx, trades)
	})
}
