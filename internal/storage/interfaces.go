package storage

import (
	"context"

	"signal-backtest-lab/internal/domain"
)

// PriceSeriesStore provides access to minute_close_prices storage.
type PriceSeriesStore interface {
	// InsertBulk adds multiple closes. Fails entire batch on duplicate (symbol, timestamp).
	InsertBulk(ctx context.Context, points []*domain.MinuteClose) error

	// GetByTimeRange retrieves closes for a symbol within [start, end] (inclusive, unix ms),
	// ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.MinuteClose, error)

	// GetSymbols lists every symbol that has at least one close.
	GetSymbols(ctx context.Context) ([]string, error)
}

// TradeRecordStore provides access to backtest_trades storage.
type TradeRecordStore interface {
	// InsertBulk adds multiple closed trades atomically. Fails entire batch on any
	// duplicate (run_id, trade_id). The same trade_id may appear under different runs.
	InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error

	// GetByID retrieves one trade of a run. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID, tradeID string) (*domain.TradeRecord, error)

	// GetByRunID retrieves all trades of a run, ordered by entry time ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.TradeRecord, error)
}

// RunStore provides access to backtest_runs storage.
type RunStore interface {
	// Insert adds a new run record. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)

	// GetByName retrieves all runs with the given name, ordered by creation time ASC.
	GetByName(ctx context.Context, runName string) ([]*domain.RunRecord, error)
}

// RunWriter persists a finished run together with its trades. Either the run
// and every trade are stored, or nothing is.
type RunWriter interface {
	InsertRun(ctx context.Context, r *domain.RunRecord, trades []*domain.TradeRecord) error
}
