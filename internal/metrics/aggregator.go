package metrics

import (
	"context"
	"fmt"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// Aggregator recomputes run summaries from persisted trades.
type Aggregator struct {
	tradeRecordStore storage.TradeRecordStore
	runStore         storage.RunStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(tradeStore storage.TradeRecordStore, runStore storage.RunStore) *Aggregator {
	return &Aggregator{
		tradeRecordStore: tradeStore,
		runStore:         runStore,
	}
}

// SummarizeRun loads a stored run and its trades and summarizes them again.
// Undefined metrics are reported the same way Summarize reports them.
func (a *Aggregator) SummarizeRun(ctx context.Context, runID string) (*domain.Summary, error) {
	run, err := a.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	trades, err := a.tradeRecordStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load trades of run %s: %w", runID, err)
	}

	summary, err := Summarize(trades, ParamsOf(run.Config))
	summary.RunTimeSeconds = run.Summary.RunTimeSeconds
	return summary, err
}

// ParamsOf extracts summary parameters from a run configuration.
func ParamsOf(cfg domain.RunConfig) SummaryParams {
	return SummaryParams{
		InitialCapital: cfg.Params.InitialCapital,
		TP:             cfg.Params.TP,
		SL:             cfg.Params.SL,
	}
}
