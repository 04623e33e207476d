// Command backtest replays one run configuration and writes its artifacts.
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

	configPath := flag.String("config", "", "Run configuration JSON file (required)")
	postgresDSN := flag.String("postgres-dsn", env.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", env.ClickhouseDSN, "ClickHouse connection string (minute closes)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	migrate := flag.Bool("migrate", false, "Apply embedded migrations before running")
	outputDir := flag.String("output-dir", env.OutputDir, "Directory for run artifacts (empty disables)")
	printJSON := flag.Bool("json", false, "Print the run document as JSON instead of the LaTeX row")
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
	cfg, err := config.LoadRunConfig(*configPath)
	if err != nil {
		logger.Fatal("load run config", zap.Error(err))
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

	out, err := orch.Run(ctx, cfg)
	if err != nil {
		logger.Fatal("backtest failed", zap.String("run_name", cfg.RunName), zap.Error(err))
	}
	if out.Result.SummaryErr != nil {
		logger.Info("some metrics are undefined", zap.Error(out.Result.SummaryErr))
	}

	if *printJSON {
		data, err := reporting.RenderRunJSON(out.Result.Record)
		if err != nil {
			logger.Fatal("render run", zap.Error(err))
		}
		os.Stdout.Write(data)
		return
	}
	fmt.Println(out.Latex)
}
