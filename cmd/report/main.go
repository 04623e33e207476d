// Command report renders a Markdown comparison of stored runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"signal-backtest-lab/internal/config"
	"signal-backtest-lab/internal/dataset"
	"signal-backtest-lab/internal/metrics"
	"signal-backtest-lab/internal/observability"
	"signal-backtest-lab/internal/orchestrator"
	"signal-backtest-lab/internal/reporting"
)

func main() {
	env, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load environment: %v\n", err)
		os.Exit(1)
	}

	names := flag.String("names", "", "Comma-separated run names to compare (required)")
	title := flag.String("title", "runs", "Report title")
	output := flag.String("output", "", "Markdown output file (default: stdout)")
	verify := flag.Bool("verify", false, "Recompute each summary from stored trades and report drift")
	replayRuns := flag.Bool("replay", false, "Re-run each stored config and compare trades with the stored ones")
	postgresDSN := flag.String("postgres-dsn", env.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", env.ClickhouseDSN, "ClickHouse connection string (replay of runs without a price file)")
	flag.Parse()

	logger, err := observability.NewLogger(env.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var runNames []string
	for _, n := range strings.Split(*names, ",") {
		if n = strings.TrimSpace(n); n != "" {
			runNames = append(runNames, n)
		}
	}
	if len(runNames) == 0 {
		logger.Fatal("--names is required")
	}

	ctx := context.Background()
	stores, cleanup, err := orchestrator.OpenStores(ctx, orchestrator.StoreConfig{
		PostgresDSN:   *postgresDSN,
		ClickhouseDSN: *clickhouseDSN,
	})
	if err != nil {
		logger.Fatal("open stores", zap.Error(err))
	}
	defer cleanup()

	report, err := reporting.NewGenerator(stores.RunStore, stores.TradeStore).Generate(ctx, *title, runNames...)
	if err != nil {
		logger.Fatal("generate report", zap.Error(err))
	}

	if *verify {
		agg := metrics.NewAggregator(stores.TradeStore, stores.RunStore)
		for _, row := range report.Runs {
			summary, err := agg.SummarizeRun(ctx, row.RunID)
			if summary == nil {
				logger.Error("recompute summary", zap.String("run_id", row.RunID), zap.Error(err))
				continue
			}
			if got := reporting.Round(summary.FinalCapital, reporting.CapitalPlaces); got != row.EndCapital {
				logger.Warn("stored summary drifted from trades",
					zap.String("run_id", row.RunID),
					zap.Float64("stored_end_capital", row.EndCapital),
					zap.Float64("recomputed_end_capital", got),
				)
			}
		}
	}

	if *replayRuns {
		loader, err := dataset.NewLoader(env.CacheRows, time.Hour)
		if err != nil {
			logger.Fatal("create dataset loader", zap.Error(err))
		}
		defer loader.Close()

		orch := orchestrator.New(orchestrator.Options{
			Loader:     loader,
			PriceStore: stores.PriceStore,
			Logger:     logger,
		})
		ids := make([]string, len(report.Runs))
		for i, row := range report.Runs {
			ids[i] = row.RunID
		}
		results, err := orch.Verify(ctx, stores.RunStore, stores.TradeStore, ids...)
		if err != nil {
			logger.Fatal("replay runs", zap.Error(err))
		}
		for _, r := range results {
			logger.Info("replay verified",
				zap.String("run_name", r.RunName),
				zap.String("run_id", r.RunID),
				zap.Bool("ok", r.OK()),
				zap.Int("matched", r.MatchedTrades),
				zap.Int("stored", r.StoredTrades),
				zap.Int("replayed", r.ReplayedTrades),
			)
		}
	}

	md := reporting.RenderMarkdown(report)
	if *output == "" {
		fmt.Print(md)
		return
	}
	if err := os.MkdirAll(filepath.Dir(*output), 0o755); err != nil {
		logger.Fatal("create output dir", zap.Error(err))
	}
	if err := os.WriteFile(*output, []byte(md), 0o644); err != nil {
		logger.Fatal("write report", zap.Error(err))
	}
	logger.Info("report written", zap.String("path", *output), zap.Int("runs", len(report.Runs)))
}
