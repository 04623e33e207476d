package backtest

import (
	"context"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/replay"
	"signal-backtest-lab/internal/strategy"
)

// Results holds the raw output of one replay.
type Results struct {
	RunID         string
	RunName       string
	EventCount    int
	DecisionCount int
	Trades        []*domain.TradeRecord
	FinalCapital  float64
}

// Engine drives a position state machine from replay events.
// Implements replay.ReplayEngine.
type Engine struct {
	machine *strategy.Machine
	results *Results
}

// NewEngine creates a new backtest engine around machine.
func NewEngine(machine *strategy.Machine, runID, runName string) *Engine {
	return &Engine{
		machine: machine,
		results: &Results{
			RunID:   runID,
			RunName: runName,
		},
	}
}

// OnEvent forwards one grid minute to the state machine.
func (e *Engine) OnEvent(ctx context.Context, event *replay.Event) error {
	e.results.EventCount++
	if event.HasDecision() {
		e.results.DecisionCount++
	}

	return e.machine.Notify(ctx, event.Time, event.PredictionIndex, event.Price)
}

// OnEnd finalizes the state machine and freezes the results.
func (e *Engine) OnEnd(ctx context.Context) error {
	e.machine.End(ctx)
	e.results.Trades = e.machine.Trades()
	e.results.FinalCapital = e.machine.Capital()
	return nil
}

// Results returns the backtest results. Trades are set once OnEnd ran.
func (e *Engine) Results() *Results {
	return e.results
}

// Ensure Engine implements replay.ReplayEngine
var _ replay.ReplayEngine = (*Engine)(nil)
