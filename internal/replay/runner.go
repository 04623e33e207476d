package replay

import (
	"context"
	"fmt"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/observability"
	"signal-backtest-lab/internal/storage"
)

// Runner loads minute closes from storage and replays a decision grid.
type Runner struct {
	priceStore storage.PriceSeriesStore
}

// NewRunner creates a new replay runner.
func NewRunner(priceStore storage.PriceSeriesStore) *Runner {
	return &Runner{priceStore: priceStore}
}

// Grid loads the closes a decision grid needs and builds its event stream.
func (r *Runner) Grid(ctx context.Context, symbol string, decisions []domain.DecisionRow, timeframe int) ([]*Event, error) {
	from, to, err := DecisionSpan(decisions)
	if err != nil {
		return nil, err
	}

	prices, err := r.priceStore.GetByTimeRange(ctx, symbol, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("load closes for %s: %w", symbol, err)
	}

	return BuildGrid(prices, decisions, timeframe)
}

// Run builds the grid for symbol and replays it through the engine.
func (r *Runner) Run(ctx context.Context, symbol string, decisions []domain.DecisionRow, timeframe int, engine ReplayEngine) error {
	events, err := r.Grid(ctx, symbol, decisions, timeframe)
	if err != nil {
		return err
	}
	return Replay(ctx, events, engine)
}

// Replay delivers events in order and signals the end of the replay.
// Cancellation is checked between events.
func Replay(ctx context.Context, events []*Event, engine ReplayEngine) error {
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := engine.OnEvent(ctx, event); err != nil {
			return err
		}
		observability.RecordEvent()
	}

	return engine.OnEnd(ctx)
}
