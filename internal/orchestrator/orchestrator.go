// Package orchestrator coordinates a backtest end to end:
// load inputs, run (or sweep), write artifacts, verify stored runs.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"signal-backtest-lab/internal/backtest"
	"signal-backtest-lab/internal/config"
	"signal-backtest-lab/internal/dataset"
	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/replay"
	"signal-backtest-lab/internal/reporting"
	"signal-backtest-lab/internal/storage"
	"signal-backtest-lab/internal/verification"
)

// ErrNoPriceSource is returned when a run names neither a minute price file
// nor a symbol with a price store to read from.
var ErrNoPriceSource = errors.New("no minute price source configured")

// Orchestrator coordinates input loading, runs and artifact output.
type Orchestrator struct {
	loader     *dataset.Loader
	priceStore storage.PriceSeriesStore
	runner     *backtest.Runner
	outputDir  string
	logger     *zap.Logger
	now        func() time.Time
}

// Options for creating Orchestrator.
type Options struct {
	Loader     *dataset.Loader          // required
	Runner     *backtest.Runner         // required
	PriceStore storage.PriceSeriesStore // used when a run has no minute price file
	OutputDir  string                   // empty skips artifact files
	Logger     *zap.Logger
	Now        func() time.Time
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		loader:     opts.Loader,
		priceStore: opts.PriceStore,
		runner:     opts.Runner,
		outputDir:  opts.OutputDir,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Outcome is the result of a single run.
type Outcome struct {
	Result    *backtest.RunResult
	Artifacts *reporting.RunArtifacts // nil when no output dir is set
	Latex     string
}

// SweepOutcome is the result of a sweep.
type SweepOutcome struct {
	Results    []*backtest.RunResult
	CSVPath    string // empty when no output dir is set
	ReportPath string
	Report     *reporting.Report
}

// Inputs loads what cfg replays. Predictions and decision rows always come
// from files; minute closes come from cfg.Data.MinutePrices when set, else
// from the price store under cfg.Data.Symbol.
func (o *Orchestrator) Inputs(ctx context.Context, cfg domain.RunConfig) (*backtest.Inputs, error) {
	if cfg.Data.MinutePrices != "" {
		ds, err := o.loader.Load(cfg.Data, cfg.WindowLength)
		if err != nil {
			return nil, fmt.Errorf("load dataset: %w", err)
		}
		return backtest.NewInputs(ds.Closes, ds.Decisions, ds.Predictions, cfg.Timeframe)
	}

	if o.priceStore == nil || cfg.Data.Symbol == "" {
		return nil, ErrNoPriceSource
	}

	decisions, err := o.loader.Decisions(cfg.Data.Dataset, cfg.WindowLength)
	if err != nil {
		return nil, fmt.Errorf("load decision rows: %w", err)
	}
	predictions, err := o.loader.Predictions(cfg.Data.Predictions)
	if err != nil {
		return nil, fmt.Errorf("load predictions: %w", err)
	}
	if len(predictions) != len(decisions) {
		return nil, fmt.Errorf("%w: %d predictions, %d decision rows", backtest.ErrPredictionCount, len(predictions), len(decisions))
	}

	events, err := replay.NewRunner(o.priceStore).Grid(ctx, cfg.Data.Symbol, decisions, cfg.Timeframe)
	if err != nil {
		return nil, err
	}
	return &backtest.Inputs{Events: events, Predictions: predictions}, nil
}

// Run executes cfg once and writes its artifacts.
func (o *Orchestrator) Run(ctx context.Context, cfg domain.RunConfig) (*Outcome, error) {
	if err := config.ValidateRun(cfg); err != nil {
		return nil, err
	}

	in, err := o.Inputs(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res, err := o.runner.Run(ctx, cfg, in)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		Result: res,
		Latex:  reporting.LatexRow(res.Record.Config, res.Record.Summary),
	}
	if o.outputDir == "" {
		return out, nil
	}

	out.Artifacts, err = reporting.WriteRunArtifacts(o.outputDir, res.Record, res.Trades)
	if err != nil {
		return nil, err
	}
	o.logger.Info("run artifacts written",
		zap.String("config", out.Artifacts.ConfigPath),
		zap.String("trades", out.Artifacts.TradesPath),
	)
	return out, nil
}

// Sweep expands grid over base, runs every scenario against inputs loaded
// once, and writes the sweep CSV and a Markdown comparison. Every scenario is
// validated before any of them runs.
func (o *Orchestrator) Sweep(ctx context.Context, base domain.RunConfig, grid backtest.Grid, prefix string, concurrency int) (*SweepOutcome, error) {
	if prefix == "" {
		prefix = base.RunName
	}

	scenarios := backtest.Scenarios(base, grid, prefix)
	for _, sc := range scenarios {
		if err := config.ValidateRun(sc); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.RunName, err)
		}
	}

	in, err := o.Inputs(ctx, base)
	if err != nil {
		return nil, err
	}

	o.logger.Info("sweep started",
		zap.String("prefix", prefix),
		zap.Int("scenarios", len(scenarios)),
		zap.Int("concurrency", concurrency),
	)

	results, err := backtest.Sweep(ctx, o.runner, scenarios, in, concurrency)
	if err != nil {
		return nil, err
	}

	records := make([]*domain.RunRecord, len(results))
	for i, res := range results {
		records[i] = res.Record
	}

	out := &SweepOutcome{
		Results: results,
		Report:  reporting.NewReport(prefix, reporting.RowsOf(records), o.now()),
	}
	if o.outputDir == "" {
		return out, nil
	}

	if out.CSVPath, err = reporting.WriteSweep(o.outputDir, base, records); err != nil {
		return nil, err
	}
	out.ReportPath = filepath.Join(o.outputDir, prefix+"_report.md")
	if err := os.WriteFile(out.ReportPath, []byte(reporting.RenderMarkdown(out.Report)), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", out.ReportPath, err)
	}

	o.logger.Info("sweep done",
		zap.String("csv", out.CSVPath),
		zap.String("report", out.ReportPath),
	)
	return out, nil
}

// Replay re-executes cfg on a throwaway runner. Nothing is persisted and no
// audit events are published.
func (o *Orchestrator) Replay(ctx context.Context, cfg domain.RunConfig) ([]*domain.TradeRecord, error) {
	in, err := o.Inputs(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res, err := backtest.NewRunner(backtest.RunnerOptions{Logger: o.logger}).Run(ctx, cfg, in)
	if err != nil {
		return nil, err
	}
	return res.Trades, nil
}

// Verify replays each stored run and compares its trades with the stored ones.
func (o *Orchestrator) Verify(ctx context.Context, runStore storage.RunStore, tradeStore storage.TradeRecordStore, runIDs ...string) ([]*verification.Report, error) {
	v := verification.NewVerifier(runStore, tradeStore, o.Replay)

	reports := make([]*verification.Report, 0, len(runIDs))
	for _, id := range runIDs {
		rep, err := v.VerifyRun(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("verify run %s: %w", id, err)
		}
		if !rep.OK() {
			o.logger.Warn("replay diverged from stored run",
				zap.String("run_id", id),
				zap.Int("divergent", rep.DivergentTrades),
				zap.Int("missing", len(rep.Missing)),
				zap.Int("extra", len(rep.Extra)),
			)
		}
		reports = append(reports, rep)
	}
	return reports, nil
}
