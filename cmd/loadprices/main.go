// Command loadprices imports a minute close CSV (open_time,close) into ClickHouse.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"signal-backtest-lab/internal/config"
	"signal-backtest-lab/internal/dataset"
	"signal-backtest-lab/internal/observability"
	"signal-backtest-lab/internal/orchestrator"
	chstore "signal-backtest-lab/internal/storage/clickhouse"
)

func main() {
	env, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load environment: %v\n", err)
		os.Exit(1)
	}

	file := flag.String("file", "", "Minute close CSV file (required)")
	symbol := flag.String("symbol", "", "Symbol the closes belong to (required)")
	clickhouseDSN := flag.String("clickhouse-dsn", env.ClickhouseDSN, "ClickHouse connection string")
	migrate := flag.Bool("migrate", true, "Apply embedded ClickHouse migrations first")
	batchSize := flag.Int("batch-size", 50000, "Rows per insert batch")
	flag.Parse()

	logger, err := observability.NewLogger(env.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *file == "" || *symbol == "" {
		logger.Fatal("--file and --symbol are required")
	}
	if *clickhouseDSN == "" {
		logger.Fatal("--clickhouse-dsn is required")
	}
	if *batchSize < 1 {
		logger.Fatal("--batch-size must be positive")
	}

	f, err := os.Open(*file)
	if err != nil {
		logger.Fatal("open file", zap.Error(err))
	}
	closes, err := dataset.ReadMinuteCloses(f, *symbol)
	f.Close()
	if err != nil {
		logger.Fatal("read minute closes", zap.String("file", *file), zap.Error(err))
	}

	ctx := context.Background()
	conn, err := orchestrator.ConnectClickhouse(ctx, *clickhouseDSN, *migrate)
	if err != nil {
		logger.Fatal("connect clickhouse", zap.Error(err))
	}
	defer conn.Close()

	store := chstore.NewPriceSeriesStore(conn)
	for from := 0; from < len(closes); from += *batchSize {
		to := min(from+*batchSize, len(closes))
		if err := store.InsertBulk(ctx, closes[from:to]); err != nil {
			logger.Fatal("insert batch",
				zap.Int("from", from),
				zap.Int("to", to),
				zap.Error(err),
			)
		}
		logger.Debug("batch inserted", zap.Int("rows", to-from))
	}

	logger.Info("minute closes loaded",
		zap.String("symbol", *symbol),
		zap.Int("rows", len(closes)),
	)
}
