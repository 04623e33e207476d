package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// TradeRecordStore implements storage.TradeRecordStore using PostgreSQL.
type TradeRecordStore struct {
	pool *Pool
}

// NewTradeRecordStore creates a new TradeRecordStore.
func NewTradeRecordStore(pool *Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

var tradeColumns = []string{
	"trade_id", "run_id", "before_trade_capital", "position_capital", "entry_price", "start_time",
	"size", "buy_fee", "fee_percentage", "tp", "sl", "ttl",
	"sell_price", "sell_fee", "end_time", "end_reason", "trade_duration",
	"total_fee", "profit", "profit_percentage", "price_change",
	"max_drawdown", "highest_possible_win", "trade_verdict", "lowest_price", "highest_price",
}

const selectTrades = `
	SELECT
		trade_id, run_id, before_trade_capital, position_capital, entry_price, start_time,
		size, buy_fee, fee_percentage, tp, sl, ttl,
		sell_price, sell_fee, end_time, end_reason, trade_duration,
		total_fee, profit, profit_percentage, price_change,
		max_drawdown, highest_possible_win, trade_verdict, lowest_price, highest_price
	FROM backtest_trades
`

// InsertBulk adds closed trades with a single COPY. Fails entire batch on any
// duplicate (run_id, trade_id) or unknown run_id.
func (s *TradeRecordStore) InsertBulk(ctx context.Context, trades []*domain.TradeRecord) (err error) {
	if len(trades) == 0 {
		return nil
	}
	if err := validateTrades(trades); err != nil {
		return err
	}

	start := time.Now()
	defer func() { observe("copy_trades", start, err) }()

	return copyTrades(ctx, s.pool, trades)
}

// copier is implemented by both the pool and a transaction.
type copier interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

func validateTrades(trades []*domain.TradeRecord) error {
	for _, t := range trades {
		if t == nil || t.TradeID == "" || t.RunID == "" || !t.Ended() {
			return storage.ErrInvalidInput
		}
	}
	return nil
}

func copyTrades(ctx context.Context, db copier, trades []*domain.TradeRecord) error {
	rows := make([][]any, len(trades))
	for i, t := range trades {
		rows[i] = []any{
			t.TradeID, t.RunID, t.BeforeTradeCapital, t.PositionCapital, t.EntryPrice, t.EntryTime.UTC(),
			t.Size, t.BuyFee, t.FeeRate, t.TP, t.SL, ttlParam(t.TTL),
			t.SellPrice, t.SellFee, t.EndTime.UTC(), string(t.EndReason), t.DurationMinutes,
			t.TotalFee, t.Profit, t.ProfitPercentage, t.PriceChange,
			t.MaxDrawdown, t.HighestPossibleWin, t.Verdict, t.LowestPrice, t.HighestPrice,
		}
	}

	_, err := db.CopyFrom(ctx, pgx.Identifier{"backtest_trades"}, tradeColumns, pgx.CopyFromRows(rows))
	if err != nil {
		switch {
		case isDuplicateKeyError(err):
			return storage.ErrDuplicateKey
		case isForeignKeyError(err):
			return fmt.Errorf("%w: unknown run_id", storage.ErrInvalidInput)
		}
		return fmt.Errorf("copy trade records: %w", err)
	}
	return nil
}

// GetByID retrieves one trade of a run. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByID(ctx context.Context, runID, tradeID string) (_ *domain.TradeRecord, err error) {
	start := time.Now()
	defer func() { observe("select_trade", start, err) }()

	row := s.pool.QueryRow(ctx, selectTrades+` WHERE run_id = $1 AND trade_id = $2`, runID, tradeID)
	t, err := scanTradeRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade record by id: %w", err)
	}
	return t, nil
}

// GetByRunID retrieves all trades of a run, ordered by entry time.
func (s *TradeRecordStore) GetByRunID(ctx context.Context, runID string) (_ []*domain.TradeRecord, err error) {
	start := time.Now()
	defer func() { observe("select_trades_by_run", start, err) }()

	rows, err := s.pool.Query(ctx, selectTrades+` WHERE run_id = $1 ORDER BY start_time ASC, trade_id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("get trade records by run id: %w", err)
	}
	defer rows.Close()

	var trades []*domain.TradeRecord
	for rows.Next() {
		t, err := scanTradeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade record row: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade record rows: %w", err)
	}
	return trades, nil
}

// scanTradeRecord scans a single row into a TradeRecord.
func scanTradeRecord(row pgx.Row) (*domain.TradeRecord, error) {
	var (
		t       domain.TradeRecord
		ttl     *int32
		endTime time.Time
		reason  string
	)

	err := row.Scan(
		&t.TradeID, &t.RunID, &t.BeforeTradeCapital, &t.PositionCapital, &t.EntryPrice, &t.EntryTime,
		&t.Size, &t.BuyFee, &t.FeeRate, &t.TP, &t.SL, &ttl,
		&t.SellPrice, &t.SellFee, &endTime, &reason, &t.DurationMinutes,
		&t.TotalFee, &t.Profit, &t.ProfitPercentage, &t.PriceChange,
		&t.MaxDrawdown, &t.HighestPossibleWin, &t.Verdict, &t.LowestPrice, &t.HighestPrice,
	)
	if err != nil {
		return nil, err
	}

	t.EntryTime = t.EntryTime.UTC()
	end := endTime.UTC()
	t.EndTime = &end
	t.EndReason = domain.EndReason(reason)
	if ttl != nil {
		v := int(*ttl)
		t.TTL = &v
	}
	return &t, nil
}

func ttlParam(ttl *int) *int32 {
	if ttl == nil {
		return nil
	}
	v := int32(*ttl)
	return &v
}
