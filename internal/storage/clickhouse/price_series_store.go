package clickhouse

import (
	"context"
	"fmt"
	"time"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// PriceSeriesStore implements storage.PriceSeriesStore using ClickHouse.
type PriceSeriesStore struct {
	conn *Conn
}

// NewPriceSeriesStore creates a new PriceSeriesStore.
func NewPriceSeriesStore(conn *Conn) *PriceSeriesStore {
	return &PriceSeriesStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceSeriesStore = (*PriceSeriesStore)(nil)

// InsertBulk adds minute closes. Fails entire batch on duplicate (symbol, open_time).
func (s *PriceSeriesStore) InsertBulk(ctx context.Context, points []*domain.MinuteClose) (err error) {
	if len(points) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { observe("insert_minute_closes", start, err) }()

	// Check for intra-batch duplicates and collect the span per symbol
	type key struct {
		symbol string
		ms     int64
	}
	type span struct{ from, to int64 }
	seen := make(map[key]struct{}, len(points))
	spans := make(map[string]span)
	for _, p := range points {
		if p == nil || p.Symbol == "" {
			return storage.ErrInvalidInput
		}
		ms := p.Time.UnixMilli()
		k := key{p.Symbol, ms}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}

		sp, ok := spans[p.Symbol]
		if !ok {
			sp = span{ms, ms}
		}
		sp.from = min(sp.from, ms)
		sp.to = max(sp.to, ms)
		spans[p.Symbol] = sp
	}

	// Check for duplicates against existing rows
	for symbol, sp := range spans {
		existing, err := s.timestamps(ctx, symbol, sp.from, sp.to)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		for _, ms := range existing {
			if _, dup := seen[key{symbol, ms}]; dup {
				return storage.ErrDuplicateKey
			}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO minute_close_prices (symbol, open_time_ms, close)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err = batch.Append(p.Symbol, uint64(p.Time.UnixMilli()), p.Close); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves closes for a symbol within [start, end] ms (inclusive), ordered by time ASC.
func (s *PriceSeriesStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) (_ []*domain.MinuteClose, err error) {
	began := time.Now()
	defer func() { observe("select_minute_closes", began, err) }()

	query := `
		SELECT symbol, open_time_ms, close
		FROM minute_close_prices
		WHERE symbol = ? AND open_time_ms >= ? AND open_time_ms <= ?
		ORDER BY open_time_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint64(max(start, 0)), uint64(max(end, 0)))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanMinuteCloses(rows)
}

// GetSymbols returns every stored symbol in lexical order.
func (s *PriceSeriesStore) GetSymbols(ctx context.Context) (_ []string, err error) {
	start := time.Now()
	defer func() { observe("select_symbols", start, err) }()

	rows, err := s.conn.Query(ctx, `SELECT DISTINCT symbol FROM minute_close_prices ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbols: %w", err)
	}
	return symbols, nil
}

func (s *PriceSeriesStore) timestamps(ctx context.Context, symbol string, from, to int64) ([]int64, error) {
	query := `
		SELECT open_time_ms FROM minute_close_prices
		WHERE symbol = ? AND open_time_ms >= ? AND open_time_ms <= ?
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint64(from), uint64(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var ms uint64
		if err := rows.Scan(&ms); err != nil {
			return nil, err
		}
		out = append(out, int64(ms))
	}
	return out, rows.Err()
}

// scanMinuteCloses scans multiple rows.
func scanMinuteCloses(rows chRows) ([]*domain.MinuteClose, error) {
	var points []*domain.MinuteClose

	for rows.Next() {
		var p domain.MinuteClose
		var ms uint64

		if err := rows.Scan(&p.Symbol, &ms, &p.Close); err != nil {
			return nil, fmt.Errorf("scan minute close row: %w", err)
		}

		p.Time = time.UnixMilli(int64(ms)).UTC()
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate minute close rows: %w", err)
	}

	return points, nil
}
