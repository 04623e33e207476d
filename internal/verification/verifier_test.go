package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage/memory"
)

var t0 = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func ptrFloat64(v float64) *float64 { return &v }

func closedTrade(id string, entry, sell float64) *domain.TradeRecord {
	tr := &domain.TradeRecord{
		TradeID:            id,
		RunID:              "run-1",
		BeforeTradeCapital: 100,
		PositionCapital:    100,
		EntryPrice:         entry,
		EntryTime:          t0,
		Size:               100 / entry,
		TP:                 ptrFloat64(0.05),
		LowestPrice:        entry,
		HighestPrice:       entry,
	}
	if err := tr.ObservePrice(sell); err != nil {
		panic(err)
	}
	if err := tr.Close(sell, 0, t0.Add(3*time.Minute), domain.EndReasonModel); err != nil {
		panic(err)
	}
	return tr
}

func TestCompareTradeRecords_ExactMatch(t *testing.T) {
	stored := closedTrade("trade1", 100, 110)
	replayed := closedTrade("trade1", 100, 110)
	replayed.RunID = "run-2"

	if d := CompareTradeRecords(stored, replayed); len(d) != 0 {
		t.Errorf("Expected 0 divergences, got %d: %v", len(d), d)
	}
}

func TestCompareTradeRecords_WithinTolerance(t *testing.T) {
	stored := closedTrade("trade1", 100, 110)
	replayed := closedTrade("trade1", 100, 110)
	replayed.Profit += FloatTolerance / 2

	if d := CompareTradeRecords(stored, replayed); len(d) != 0 {
		t.Errorf("Expected 0 divergences within tolerance, got %v", d)
	}
}

func TestCompareTradeRecords_Divergences(t *testing.T) {
	stored := closedTrade("trade1", 100, 110)
	replayed := closedTrade("trade1", 100, 110)
	replayed.Profit += 2 * FloatTolerance
	replayed.EndReason = domain.EndReasonTP
	replayed.TP = nil

	d := CompareTradeRecords(stored, replayed)
	fields := map[string]bool{}
	for _, div := range d {
		fields[div.Field] = true
	}
	for _, want := range []string{"Profit", "EndReason", "TP"} {
		if !fields[want] {
			t.Errorf("Expected divergence on %s, got %v", want, d)
		}
	}
	if len(d) != 3 {
		t.Errorf("Expected 3 divergences, got %d: %v", len(d), d)
	}
}

func TestCompare_MissingAndExtra(t *testing.T) {
	run := &domain.RunRecord{RunID: "run-1", Config: domain.RunConfig{RunName: "r"}}
	stored := []*domain.TradeRecord{closedTrade("a", 100, 110), closedTrade("b", 100, 90)}
	replayed := []*domain.TradeRecord{closedTrade("a", 100, 110), closedTrade("c", 100, 95)}

	rep := Compare(run, stored, replayed)
	if rep.OK() {
		t.Fatal("Expected report to fail")
	}
	if rep.MatchedTrades != 1 || rep.DivergentTrades != 0 {
		t.Errorf("Matched=%d Divergent=%d, want 1/0", rep.MatchedTrades, rep.DivergentTrades)
	}
	if len(rep.Missing) != 1 || rep.Missing[0] != "b" {
		t.Errorf("Missing = %v, want [b]", rep.Missing)
	}
	if len(rep.Extra) != 1 || rep.Extra[0] != "c" {
		t.Errorf("Extra = %v, want [c]", rep.Extra)
	}
}

func TestVerifier_VerifyRun(t *testing.T) {
	ctx := context.Background()
	runStore := memory.NewRunStore()
	tradeStore := memory.NewTradeRecordStore()

	cfg := domain.RunConfig{RunName: "verify"}
	if err := runStore.Insert(ctx, &domain.RunRecord{RunID: "run-1", RunName: "verify", Config: cfg, CreatedAt: t0}); err != nil {
		t.Fatalf("Insert run: %v", err)
	}
	if err := tradeStore.InsertBulk(ctx, []*domain.TradeRecord{closedTrade("a", 100, 110)}); err != nil {
		t.Fatalf("Insert trades: %v", err)
	}

	var replayedName string
	v := NewVerifier(runStore, tradeStore, func(_ context.Context, c domain.RunConfig) ([]*domain.TradeRecord, error) {
		replayedName = c.RunName
		return []*domain.TradeRecord{closedTrade("a", 100, 110)}, nil
	})

	rep, err := v.VerifyRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("VerifyRun failed: %v", err)
	}
	if !rep.OK() || rep.MatchedTrades != 1 {
		t.Errorf("Expected clean report, got %+v", rep)
	}
	if replayedName != "verify" {
		t.Errorf("replayed config name = %q, want verify", replayedName)
	}
}

func TestVerifier_UnknownRun(t *testing.T) {
	v := NewVerifier(memory.NewRunStore(), memory.NewTradeRecordStore(), nil)
	_, err := v.VerifyRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}

func TestVerifier_ReplayError(t *testing.T) {
	ctx := context.Background()
	runStore := memory.NewRunStore()
	if err := runStore.Insert(ctx, &domain.RunRecord{RunID: "run-1", RunName: "r", CreatedAt: t0}); err != nil {
		t.Fatalf("Insert run: %v", err)
	}

	boom := errors.New("boom")
	v := NewVerifier(runStore, memory.NewTradeRecordStore(), func(context.Context, domain.RunConfig) ([]*domain.TradeRecord, error) {
		return nil, boom
	})
	if _, err := v.VerifyRun(ctx, "run-1"); !errors.Is(err, boom) {
		t.Errorf("Expected replay error, got %v", err)
	}
}
