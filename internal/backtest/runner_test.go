package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/metrics"
	"signal-backtest-lab/internal/replay"
	"signal-backtest-lab/internal/storage"
	"signal-backtest-lab/internal/storage/memory"
	"signal-backtest-lab/internal/strategy"
	"signal-backtest-lab/internal/telemetry"
)

var t0 = time.Date(2023, 3, 1, 9, 0, 0, 0, time.UTC)

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }

// buildInputs lays predictions one per minute over a price path.
func buildInputs(t *testing.T, prices []float64, predictions []int) *Inputs {
	t.Helper()
	var closes []*domain.MinuteClose
	for i, p := range prices {
		closes = append(closes, &domain.MinuteClose{Symbol: "X", Time: t0.Add(time.Duration(i) * time.Minute), Close: p})
	}
	decisions := make([]domain.DecisionRow, len(predictions))
	for i := range predictions {
		decisions[i] = domain.DecisionRow{Time: t0.Add(time.Duration(i) * time.Minute), Index: i}
	}
	events, err := replay.BuildGrid(closes, decisions, 1)
	if err != nil {
		t.Fatalf("BuildGrid failed: %v", err)
	}
	return &Inputs{Events: events, Predictions: predictions}
}

func baseConfig() domain.RunConfig {
	return domain.RunConfig{
		RunName: "unit",
		Model:   "LSTM",
		Classes: 3,
		Params: domain.RunParams{
			TradeFee:           0.001,
			InitialCapital:     1000,
			MaxPositionCapital: 500,
		},
		LogToTelemetry: true,
	}
}

func fixedIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("run-%d", n)
	}
}

type countingPublisher struct {
	mu     sync.Mutex
	counts map[telemetry.EventType]int
}

func (p *countingPublisher) Publish(_ context.Context, ev *telemetry.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.counts == nil {
		p.counts = make(map[telemetry.EventType]int)
	}
	p.counts[ev.Type]++
	return nil
}

func TestEngine_CountsEventsAndFinalizes(t *testing.T) {
	// buy, hold, sell, buy (left open)
	in := buildInputs(t, []float64{100, 101, 102, 103, 104, 105}, []int{0, 1, 2, 0})

	machine, err := strategy.NewMachine(baseConfig(), in.Predictions, strategy.MachineOptions{})
	if err != nil {
		t.Fatalf("NewMachine failed: %v", err)
	}
	engine := NewEngine(machine, "id", "unit")
	if err := replay.Replay(context.Background(), in.Events, engine); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	res := engine.Results()
	if res.EventCount != 5 {
		t.Errorf("Expected EventCount 5, got %d", res.EventCount)
	}
	if res.DecisionCount != 4 {
		t.Errorf("Expected DecisionCount 4, got %d", res.DecisionCount)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("Expected 1 closed trade, got %d", len(res.Trades))
	}
	if res.FinalCapital != 1000+res.Trades[0].Profit {
		t.Errorf("FinalCapital = %v, want %v", res.FinalCapital, 1000+res.Trades[0].Profit)
	}
	if machine.Open() != nil {
		t.Error("trailing position must be discarded")
	}
}

func TestRunner_RunPersistsAndSummarizes(t *testing.T) {
	ctx := context.Background()
	runs := memory.NewRunStore()
	trades := memory.NewTradeRecordStore()
	pub := &countingPublisher{}

	runner := NewRunner(RunnerOptions{
		Publisher: pub,
		Writer:    memory.NewRunWriter(runs, trades),
		NewRunID:  fixedIDs(),
	})

	// buy 100, sell 110, buy 100, sell 95
	in := buildInputs(t, []float64{100, 110, 100, 95, 95}, []int{0, 2, 0, 2})
	res, err := runner.Run(ctx, baseConfig(), in)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.SummaryErr != nil {
		t.Errorf("unexpected summary error: %v", res.SummaryErr)
	}

	rec := res.Record
	if rec.RunID != "run-1" || rec.RunName != "unit" {
		t.Errorf("unexpected record ids: %s/%s", rec.RunID, rec.RunName)
	}
	if rec.Summary.TradeCount != 2 || rec.Summary.Wins != 1 || rec.Summary.Losses != 1 {
		t.Errorf("unexpected counts: %+v", rec.Summary)
	}
	want := 1000.0
	for _, tr := range res.Trades {
		want += tr.Profit
	}
	if rec.Summary.FinalCapital != want {
		t.Errorf("FinalCapital = %v, want %v", rec.Summary.FinalCapital, want)
	}
	if rec.Summary.RunTimeSeconds < 0 {
		t.Errorf("negative run time %v", rec.Summary.RunTimeSeconds)
	}

	stored, err := runs.GetByID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Summary.TradeCount != 2 {
		t.Errorf("stored TradeCount = %d, want 2", stored.Summary.TradeCount)
	}
	storedTrades, err := trades.GetByRunID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(storedTrades) != 2 {
		t.Errorf("stored trades = %d, want 2", len(storedTrades))
	}

	// Re-aggregating the stored trades gives the same summary.
	again, err := metrics.NewAggregator(trades, runs).SummarizeRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("SummarizeRun failed: %v", err)
	}
	if again.FinalCapital != rec.Summary.FinalCapital || *again.WinRate != *rec.Summary.WinRate {
		t.Errorf("re-aggregated summary differs: %+v vs %+v", again, rec.Summary)
	}

	if pub.counts[telemetry.EventPrediction] != 4 || pub.counts[telemetry.EventTrade] != 2 {
		t.Errorf("unexpected audit events: %v", pub.counts)
	}
}

func TestRunner_TelemetryDisabled(t *testing.T) {
	pub := &countingPublisher{}
	runner := NewRunner(RunnerOptions{Publisher: pub})

	cfg := baseConfig()
	cfg.LogToTelemetry = false
	in := buildInputs(t, []float64{100, 110, 110}, []int{0, 2})
	if _, err := runner.Run(context.Background(), cfg, in); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(pub.counts) != 0 {
		t.Errorf("expected no audit events, got %v", pub.counts)
	}
}

func TestRunner_NoTradesStillSucceeds(t *testing.T) {
	runner := NewRunner(RunnerOptions{})
	// hold only
	in := buildInputs(t, []float64{100, 101, 102}, []int{1, 1})

	res, err := runner.Run(context.Background(), baseConfig(), in)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !errors.Is(res.SummaryErr, metrics.ErrNoTrades) {
		t.Errorf("expected ErrNoTrades summary error, got %v", res.SummaryErr)
	}
	if res.Record.Summary.FinalCapital != 1000 {
		t.Errorf("FinalCapital = %v, want 1000", res.Record.Summary.FinalCapital)
	}
}

func TestRunner_UnknownLabelFails(t *testing.T) {
	runner := NewRunner(RunnerOptions{})
	cfg := baseConfig()
	cfg.Classes = 2
	in := buildInputs(t, []float64{100, 101, 102}, []int{0, 2})

	_, err := runner.Run(context.Background(), cfg, in)
	if !errors.Is(err, strategy.ErrUnknownLabel) {
		t.Errorf("expected ErrUnknownLabel, got %v", err)
	}
}

func TestRunner_DuplicateRunIDFails(t *testing.T) {
	runs := memory.NewRunStore()
	runner := NewRunner(RunnerOptions{
		Writer:   memory.NewRunWriter(runs, memory.NewTradeRecordStore()),
		NewRunID: func() string { return "same" },
	})
	in := buildInputs(t, []float64{100, 101}, []int{1})

	if _, err := runner.Run(context.Background(), baseConfig(), in); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	_, err := runner.Run(context.Background(), baseConfig(), in)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestRunner_SameConfigTwicePersistsBoth(t *testing.T) {
	ctx := context.Background()
	runs := memory.NewRunStore()
	trades := memory.NewTradeRecordStore()
	runner := NewRunner(RunnerOptions{Writer: memory.NewRunWriter(runs, trades)})

	in := buildInputs(t, []float64{100, 110, 100, 95, 95}, []int{0, 2, 0, 2})
	first, err := runner.Run(ctx, baseConfig(), in)
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	second, err := runner.Run(ctx, baseConfig(), in)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if first.Record.RunID == second.Record.RunID {
		t.Fatal("expected distinct run ids")
	}

	byName, err := runs.GetByName(ctx, "unit")
	if err != nil {
		t.Fatalf("GetByName failed: %v", err)
	}
	if len(byName) != 2 {
		t.Fatalf("runs stored under name = %d, want 2", len(byName))
	}
	for _, rec := range []*RunResult{first, second} {
		stored, err := trades.GetByRunID(ctx, rec.Record.RunID)
		if err != nil {
			t.Fatalf("GetByRunID failed: %v", err)
		}
		if len(stored) != 2 {
			t.Errorf("run %s: stored trades = %d, want 2", rec.Record.RunID, len(stored))
		}
	}
	if first.Trades[0].TradeID != second.Trades[0].TradeID {
		t.Error("trade ids of identical runs should match")
	}
}

func TestScenarios_ExpandsGrid(t *testing.T) {
	grid := Grid{
		TP:  []*float64{ptrF(0.01), ptrF(0.02)},
		SL:  []*float64{nil, ptrF(0.01)},
		TTL: []*int{ptrI(30)},
	}
	if grid.Size() != 4 {
		t.Fatalf("Size = %d, want 4", grid.Size())
	}

	scenarios := Scenarios(baseConfig(), grid, "tune")
	if len(scenarios) != 4 {
		t.Fatalf("Expected 4 scenarios, got %d", len(scenarios))
	}

	want := []struct {
		name string
		tp   float64
		sl   *float64
	}{
		{"tune_0", 0.01, nil},
		{"tune_1", 0.01, ptrF(0.01)},
		{"tune_2", 0.02, nil},
		{"tune_3", 0.02, ptrF(0.01)},
	}
	for i, w := range want {
		s := scenarios[i]
		if s.RunName != w.name || *s.Params.TP != w.tp {
			t.Errorf("scenario %d = %s tp=%v, want %s tp=%v", i, s.RunName, *s.Params.TP, w.name, w.tp)
		}
		if (s.Params.SL == nil) != (w.sl == nil) || (w.sl != nil && *s.Params.SL != *w.sl) {
			t.Errorf("scenario %d sl = %v, want %v", i, s.Params.SL, w.sl)
		}
		if *s.Params.TTL != 30 || s.Params.InitialCapital != 1000 {
			t.Errorf("scenario %d lost base params: %+v", i, s.Params)
		}
	}
}

func TestScenarios_EmptyGridIsBase(t *testing.T) {
	scenarios := Scenarios(baseConfig(), Grid{}, "p")
	if len(scenarios) != 1 || scenarios[0].RunName != "p_0" {
		t.Fatalf("unexpected scenarios: %+v", scenarios)
	}
	if p := scenarios[0].Params; p.TP != nil || p.SL != nil || p.TTL != nil {
		t.Errorf("expected unset risk params, got %+v", p)
	}
}

func TestSweep_OrderedAndIndependent(t *testing.T) {
	ctx := context.Background()
	prices := []float64{100, 101, 103, 99, 98, 104, 106, 100, 97, 102, 102}
	predictions := []int{0, 1, 1, 1, 2, 0, 1, 1, 1, 2}
	in := buildInputs(t, prices, predictions)

	grid := Grid{
		TP: []*float64{nil, ptrF(0.02)},
		SL: []*float64{nil, ptrF(0.015)},
	}
	scenarios := Scenarios(baseConfig(), grid, "sweep")

	sequential, err := Sweep(ctx, NewRunner(RunnerOptions{}), scenarios, in, 1)
	if err != nil {
		t.Fatalf("sequential Sweep failed: %v", err)
	}
	concurrent, err := Sweep(ctx, NewRunner(RunnerOptions{}), scenarios, in, 4)
	if err != nil {
		t.Fatalf("concurrent Sweep failed: %v", err)
	}

	if len(sequential) != len(scenarios) || len(concurrent) != len(scenarios) {
		t.Fatalf("result counts = %d/%d, want %d", len(sequential), len(concurrent), len(scenarios))
	}
	for i := range scenarios {
		a, b := sequential[i].Record, concurrent[i].Record
		if a.RunName != scenarios[i].RunName || b.RunName != scenarios[i].RunName {
			t.Errorf("result %d out of order: %s/%s", i, a.RunName, b.RunName)
		}
		if a.Summary.FinalCapital != b.Summary.FinalCapital || a.Summary.TradeCount != b.Summary.TradeCount {
			t.Errorf("scenario %s differs between sequential and concurrent runs", a.RunName)
		}
	}

	// With no risk exits the model alone closes both trades.
	if sequential[0].Record.Summary.TradeCount != 2 {
		t.Errorf("baseline trades = %d, want 2", sequential[0].Record.Summary.TradeCount)
	}
}

func TestSweep_FailureCancels(t *testing.T) {
	in := buildInputs(t, []float64{100, 101, 102}, []int{0, 2})
	bad := baseConfig()
	bad.Classes = 7

	_, err := Sweep(context.Background(), NewRunner(RunnerOptions{}), []domain.RunConfig{baseConfig(), bad}, in, 2)
	if !errors.Is(err, strategy.ErrUnsupportedClasses) {
		t.Errorf("expected ErrUnsupportedClasses, got %v", err)
	}
}
