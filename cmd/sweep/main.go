// Command sweep runs a take-profit × stop-loss × time-to-live grid over one
// run configuration and writes the tuning CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"signal-backtest-lab/internal/backtest"
	"signal-backtest-lab/internal/config"
	"signal-backtest-lab/internal/dataset"
	"signal-backtest-lab/internal/observability"
	"signal-backtest-lab/internal/orchestrator"
	"signal-backtest-lab/internal/reporting"
	"signal-backtest-lab/internal/telemetry"
)

func main() {
	env, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load environment: %v\n", err)
		os.Exit(1)
	}

	configPath := flag.String("config", "", "Base run configuration JSON file (required)")
	prefix := flag.String("prefix", "", "Run name prefix (default: base run name)")
	tpList := flag.String("tp", "none,0.005,0.01,0.03,0.05,0.1", "Take-profit fractions (none = unset)")
	slList := flag.String("sl", "none,0.005,0.01,0.03,0.05,0.1", "Stop-loss fractions (none = unset)")
	ttlList := flag.String("ttl", "none,180,300,420", "Time-to-live minutes (none = unset)")
	concurrency := flag.Int("concurrency", 1, "Runs executed at once")
	postgresDSN := flag.String("postgres-dsn", env.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", env.ClickhouseDSN, "ClickHouse connection string (minute closes)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	migrate := flag.Bool("migrate", false, "Apply embedded migrations before running")
	outputDir := flag.String("output-dir", env.OutputDir, "Directory for the tuning CSV and report")
	flag.Parse()

	logger, err := observability.NewLogger(env.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *configPath == "" {
		logger.Fatal("--config is required")
	}
	base, err := config.LoadRunConfig(*configPath)
	if err != nil {
		logger.Fatal("load run config", zap.Error(err))
	}

	grid, err := parseGrid(*tpList, *slList, *ttlList)
	if err != nil {
		logger.Fatal("parse grid", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	var sinks []telemetry.Publisher
	if env.MetricsAddr != "" {
		hub := telemetry.NewHub(telemetry.DefaultHubConfig(), logger)
		defer hub.Close()
		sinks = append(sinks, hub)

		go func() {
			routes := map[string]http.Handler{"/events": hub}
			if err := observability.Serve(ctx, env.MetricsAddr, logger, routes); err != nil {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
	}

	stores, cleanup, err := orchestrator.OpenStores(ctx, orchestrator.StoreConfig{
		UseMemory:     *useMemory,
		PostgresDSN:   *postgresDSN,
		ClickhouseDSN: *clickhouseDSN,
		Migrate:       *migrate,
	})
	if err != nil {
		logger.Fatal("open stores", zap.Error(err))
	}
	defer cleanup()

	publisher, closePublisher, err := orchestrator.NewPublisher(ctx, env, logger, sinks...)
	if err != nil {
		logger.Fatal("create telemetry publisher", zap.Error(err))
	}
	defer closePublisher()

	loader, err := dataset.NewLoader(env.CacheRows, time.Hour)
	if err != nil {
		logger.Fatal("create dataset loader", zap.Error(err))
	}
	defer loader.Close()

	orch := orchestrator.New(orchestrator.Options{
		Loader:     loader,
		PriceStore: stores.PriceStore,
		Runner: backtest.NewRunner(backtest.RunnerOptions{
			Publisher: publisher,
			Logger:    logger,
			Writer:    stores.Writer,
		}),
		OutputDir: *outputDir,
		Logger:    logger,
	})

	out, err := orch.Sweep(ctx, base, grid, *prefix, *concurrency)
	if err != nil {
		logger.Fatal("sweep failed", zap.Error(err))
	}

	for _, res := range out.Results {
		fmt.Println(reporting.LatexRow(res.Record.Config, res.Record.Summary))
	}
	if out.Report.Best != nil {
		logger.Info("best run",
			zap.String("run_name", out.Report.Best.RunName),
			zap.Float64("end_capital", out.Report.Best.EndCapital),
		)
	}
}

func parseGrid(tp, sl, ttl string) (backtest.Grid, error) {
	tps, err := config.ParseFloatList(tp)
	if err != nil {
		return backtest.Grid{}, fmt.Errorf("--tp: %w", err)
	}
	sls, err := config.ParseFloatList(sl)
	if err != nil {
		return backtest.Grid{}, fmt.Errorf("--sl: %w", err)
	}
	ttls, err := config.ParseIntList(ttl)
	if err != nil {
		return backtest.Grid{}, fmt.Errorf("--ttl: %w", err)
	}
	return backtest.Grid{TP: tps, SL: sls, TTL: ttls}, nil
}
