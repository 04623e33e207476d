package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/metrics"
	"signal-backtest-lab/internal/observability"
	"signal-backtest-lab/internal/replay"
	"signal-backtest-lab/internal/storage"
	"signal-backtest-lab/internal/strategy"
	"signal-backtest-lab/internal/telemetry"
)

// Run statuses recorded in metrics.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Inputs is the loaded data a run replays. It is read-only and may be shared
// between concurrent runs.
type Inputs struct {
	Events      []*replay.Event
	Predictions []int
}

// RunResult is the outcome of one run.
type RunResult struct {
	Record *domain.RunRecord
	Trades []*domain.TradeRecord
	// SummaryErr reports undefined summary metrics; it never fails a run.
	SummaryErr error
}

// RunnerOptions configures optional collaborators of a Runner.
type RunnerOptions struct {
	Publisher telemetry.Publisher // nil disables audit events
	Logger    *zap.Logger
	Writer    storage.RunWriter // nil skips persistence
	NewRunID  func() string
	Now       func() time.Time
}

// Runner executes backtest runs.
type Runner struct {
	publisher telemetry.Publisher
	logger    *zap.Logger
	writer    storage.RunWriter
	newRunID  func() string
	now       func() time.Time
}

// NewRunner creates a new backtest runner.
func NewRunner(opts RunnerOptions) *Runner {
	r := &Runner{
		publisher: opts.Publisher,
		logger:    opts.Logger,
		writer:    opts.Writer,
		newRunID:  opts.NewRunID,
		now:       opts.Now,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.newRunID == nil {
		r.newRunID = uuid.NewString
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Run replays in under cfg with a fresh state machine, summarizes the closed
// trades and persists the run when stores are configured.
func (r *Runner) Run(ctx context.Context, cfg domain.RunConfig, in *Inputs) (*RunResult, error) {
	start := r.now()
	runID := r.newRunID()
	logger := r.logger.With(zap.String("run_name", cfg.RunName), zap.String("run_id", runID))

	res, err := r.run(ctx, cfg, in, runID, start, logger)
	status := StatusOK
	if err != nil {
		status = StatusFailed
	}
	observability.RecordRun(status, r.now().Sub(start).Seconds())
	if err != nil {
		logger.Error("backtest failed", zap.Error(err))
		return nil, err
	}
	return res, nil
}

func (r *Runner) run(ctx context.Context, cfg domain.RunConfig, in *Inputs, runID string, start time.Time, logger *zap.Logger) (*RunResult, error) {
	publisher := r.publisher
	if !cfg.LogToTelemetry {
		publisher = nil
	}

	machine, err := strategy.NewMachine(cfg, in.Predictions, strategy.MachineOptions{
		RunID:     runID,
		Publisher: publisher,
		Logger:    logger,
		LogTrades: cfg.LogToStdout,
	})
	if err != nil {
		return nil, err
	}

	engine := NewEngine(machine, runID, cfg.RunName)
	if err := replay.Replay(ctx, in.Events, engine); err != nil {
		return nil, fmt.Errorf("replay %s: %w", cfg.RunName, err)
	}
	results := engine.Results()

	summary, summaryErr := metrics.Summarize(results.Trades, metrics.ParamsOf(cfg))
	duration := r.now().Sub(start)
	summary.RunTimeSeconds = duration.Seconds()
	if summaryErr != nil {
		logger.Warn("summary has undefined metrics", zap.Error(summaryErr))
	}

	record := &domain.RunRecord{
		RunID:     runID,
		RunName:   cfg.RunName,
		Config:    cfg,
		Summary:   *summary,
		Duration:  duration,
		CreatedAt: start.UTC(),
	}

	if err := r.persist(ctx, record, results.Trades); err != nil {
		return nil, err
	}

	logger.Info("backtest done",
		zap.Int("events", results.EventCount),
		zap.Int("decisions", results.DecisionCount),
		zap.Int("trades", summary.TradeCount),
		zap.Float64("end_capital", summary.FinalCapital),
		zap.Duration("duration", duration),
	)

	return &RunResult{Record: record, Trades: results.Trades, SummaryErr: summaryErr}, nil
}

func (r *Runner) persist(ctx context.Context, record *domain.RunRecord, trades []*domain.TradeRecord) error {
	if r.writer == nil {
		return nil
	}
	if err := r.writer.InsertRun(ctx, record, trades); err != nil {
		return fmt.Errorf("store run %s: %w", record.RunID, err)
	}
	return nil
}

// NewInputs builds the replay grid of a run from loaded data.
func NewInputs(prices []*domain.MinuteClose, decisions []domain.DecisionRow, predictions []int, timeframe int) (*Inputs, error) {
	if len(predictions) != len(decisions) {
		return nil, fmt.Errorf("%w: %d predictions, %d decision rows", ErrPredictionCount, len(predictions), len(decisions))
	}
	events, err := replay.BuildGrid(prices, decisions, timeframe)
	if err != nil {
		return nil, err
	}
	return &Inputs{Events: events, Predictions: predictions}, nil
}
