package orchestrator

import (
	"context"
	"fmt"

	"signal-backtest-lab/internal/storage"
	chstore "signal-backtest-lab/internal/storage/clickhouse"
	"signal-backtest-lab/internal/storage/memory"
	"signal-backtest-lab/internal/storage/migrations"
	pgstore "signal-backtest-lab/internal/storage/postgres"
)

// Stores holds the storage implementations used by the commands.
// PriceStore is nil when no ClickHouse DSN is configured.
type Stores struct {
	RunStore   storage.RunStore
	TradeStore storage.TradeRecordStore
	PriceStore storage.PriceSeriesStore
	Writer     storage.RunWriter // persists a run with its trades as one unit
}

// StoreConfig selects the storage backends.
type StoreConfig struct {
	UseMemory     bool
	PostgresDSN   string
	ClickhouseDSN string
	Migrate       bool // apply embedded migrations on connect
}

// OpenStores connects the configured backends. The returned cleanup closes them.
func OpenStores(ctx context.Context, cfg StoreConfig) (*Stores, func(), error) {
	if cfg.UseMemory {
		runs, trades := memory.NewRunStore(), memory.NewTradeRecordStore()
		return &Stores{
			RunStore:   runs,
			TradeStore: trades,
			PriceStore: memory.NewPriceSeriesStore(),
			Writer:     memory.NewRunWriter(runs, trades),
		}, func() {}, nil
	}

	if cfg.PostgresDSN == "" {
		return nil, nil, fmt.Errorf("postgres dsn is required without in-memory storage")
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if cfg.Migrate {
		if _, err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}

	stores := &Stores{
		RunStore:   pgstore.NewRunStore(pool),
		TradeStore: pgstore.NewTradeRecordStore(pool),
		Writer:     pgstore.NewRunWriter(pool),
	}
	cleanup := pool.Close

	if cfg.ClickhouseDSN != "" {
		conn, err := ConnectClickhouse(ctx, cfg.ClickhouseDSN, cfg.Migrate)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		stores.PriceStore = chstore.NewPriceSeriesStore(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	return stores, cleanup, nil
}

// ConnectClickhouse connects to ClickHouse, applying migrations first when migrate is set.
func ConnectClickhouse(ctx context.Context, dsn string, migrate bool) (*chstore.Conn, error) {
	if migrate {
		conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("migrate clickhouse: %w", err)
		}
		return conn, nil
	}
	conn, err := chstore.NewConn(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	return conn, nil
}
