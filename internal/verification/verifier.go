// Package verification checks that stored backtest runs reproduce: it replays
// a run's stored configuration and compares the replayed trades field by field
// against the stored ones.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// ErrRunNotFound is returned when the run ID doesn't exist.
var ErrRunNotFound = errors.New("run not found")

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// TradeResult contains the result of verifying a single trade.
type TradeResult struct {
	TradeID        string
	Match          bool
	Divergences    []FieldDivergence
	StoredProfit   float64
	ReplayedProfit float64
}

// Report contains the verification results of one run.
type Report struct {
	RunID           string
	RunName         string
	StoredTrades    int
	ReplayedTrades  int
	MatchedTrades   int
	DivergentTrades int
	Missing         []string // stored trade IDs absent from the replay
	Extra           []string // replayed trade IDs absent from storage
	Results         []TradeResult
}

// OK reports whether the replay reproduced every stored trade exactly.
func (r *Report) OK() bool {
	return r.DivergentTrades == 0 && len(r.Missing) == 0 && len(r.Extra) == 0
}

// ReplayFunc re-executes cfg without persisting and returns its closed trades.
type ReplayFunc func(ctx context.Context, cfg domain.RunConfig) ([]*domain.TradeRecord, error)

// Verifier replays stored runs.
type Verifier struct {
	runStore   storage.RunStore
	tradeStore storage.TradeRecordStore
	replay     ReplayFunc
}

// NewVerifier creates a new Verifier.
func NewVerifier(runStore storage.RunStore, tradeStore storage.TradeRecordStore, replay ReplayFunc) *Verifier {
	return &Verifier{
		runStore:   runStore,
		tradeStore: tradeStore,
		replay:     replay,
	}
}

// VerifyRun loads the run and its trades, replays the stored configuration
// and pairs the two trade lists by trade ID.
func (v *Verifier) VerifyRun(ctx context.Context, runID string) (*Report, error) {
	run, err := v.runStore.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("get run: %w", err)
	}

	stored, err := v.tradeStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get trades: %w", err)
	}

	replayed, err := v.replay(ctx, run.Config)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", run.Config.RunName, err)
	}

	return Compare(run, stored, replayed), nil
}

// Compare pairs stored and replayed trades by trade ID. Stored order is kept
// in Results.
func Compare(run *domain.RunRecord, stored, replayed []*domain.TradeRecord) *Report {
	report := &Report{
		RunID:          run.RunID,
		RunName:        run.Config.RunName,
		StoredTrades:   len(stored),
		ReplayedTrades: len(replayed),
		Results:        make([]TradeResult, 0, len(stored)),
	}

	byID := make(map[string]*domain.TradeRecord, len(replayed))
	for _, t := range replayed {
		byID[t.TradeID] = t
	}

	seen := make(map[string]struct{}, len(stored))
	for _, s := range stored {
		seen[s.TradeID] = struct{}{}
		r, ok := byID[s.TradeID]
		if !ok {
			report.Missing = append(report.Missing, s.TradeID)
			continue
		}

		divergences := CompareTradeRecords(s, r)
		report.Results = append(report.Results, TradeResult{
			TradeID:        s.TradeID,
			Match:          len(divergences) == 0,
			Divergences:    divergences,
			StoredProfit:   s.Profit,
			ReplayedProfit: r.Profit,
		})
		if len(divergences) == 0 {
			report.MatchedTrades++
		} else {
			report.DivergentTrades++
		}
	}

	for _, r := range replayed {
		if _, ok := seen[r.TradeID]; !ok {
			report.Extra = append(report.Extra, r.TradeID)
		}
	}
	return report
}

// CompareTradeRecords compares two trade records and returns divergences.
// Run IDs are not compared: a replay always runs under a fresh ID.
func CompareTradeRecords(stored, replayed *domain.TradeRecord) []FieldDivergence {
	var d []FieldDivergence

	if stored.TradeID != replayed.TradeID {
		d = append(d, FieldDivergence{"TradeID", stored.TradeID, replayed.TradeID})
	}

	d = appendFloat(d, "BeforeTradeCapital", stored.BeforeTradeCapital, replayed.BeforeTradeCapital)
	d = appendFloat(d, "PositionCapital", stored.PositionCapital, replayed.PositionCapital)
	d = appendFloat(d, "EntryPrice", stored.EntryPrice, replayed.EntryPrice)
	if !stored.EntryTime.Equal(replayed.EntryTime) {
		d = append(d, FieldDivergence{"EntryTime", stored.EntryTime, replayed.EntryTime})
	}
	d = appendFloat(d, "Size", stored.Size, replayed.Size)
	d = appendFloat(d, "BuyFee", stored.BuyFee, replayed.BuyFee)
	d = appendFloat(d, "FeeRate", stored.FeeRate, replayed.FeeRate)

	if !floatPtrEquals(stored.TP, replayed.TP) {
		d = append(d, FieldDivergence{"TP", stored.TP, replayed.TP})
	}
	if !floatPtrEquals(stored.SL, replayed.SL) {
		d = append(d, FieldDivergence{"SL", stored.SL, replayed.SL})
	}
	if !intPtrEquals(stored.TTL, replayed.TTL) {
		d = append(d, FieldDivergence{"TTL", stored.TTL, replayed.TTL})
	}

	d = appendFloat(d, "SellPrice", stored.SellPrice, replayed.SellPrice)
	d = appendFloat(d, "SellFee", stored.SellFee, replayed.SellFee)
	if !timePtrEquals(stored.EndTime, replayed.EndTime) {
		d = append(d, FieldDivergence{"EndTime", stored.EndTime, replayed.EndTime})
	}
	if stored.EndReason != replayed.EndReason {
		d = append(d, FieldDivergence{"EndReason", stored.EndReason, replayed.EndReason})
	}

	if stored.DurationMinutes != replayed.DurationMinutes {
		d = append(d, FieldDivergence{"DurationMinutes", stored.DurationMinutes, replayed.DurationMinutes})
	}
	d = appendFloat(d, "TotalFee", stored.TotalFee, replayed.TotalFee)
	d = appendFloat(d, "Profit", stored.Profit, replayed.Profit)
	d = appendFloat(d, "ProfitPercentage", stored.ProfitPercentage, replayed.ProfitPercentage)
	d = appendFloat(d, "PriceChange", stored.PriceChange, replayed.PriceChange)
	d = appendFloat(d, "MaxDrawdown", stored.MaxDrawdown, replayed.MaxDrawdown)
	d = appendFloat(d, "HighestPossibleWin", stored.HighestPossibleWin, replayed.HighestPossibleWin)
	if stored.Verdict != replayed.Verdict {
		d = append(d, FieldDivergence{"Verdict", stored.Verdict, replayed.Verdict})
	}

	d = appendFloat(d, "LowestPrice", stored.LowestPrice, replayed.LowestPrice)
	d = appendFloat(d, "HighestPrice", stored.HighestPrice, replayed.HighestPrice)
	return d
}

func appendFloat(d []FieldDivergence, field string, expected, actual float64) []FieldDivergence {
	if floatEquals(expected, actual) {
		return d
	}
	return append(d, FieldDivergence{Field: field, Expected: expected, Actual: actual})
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}

// floatPtrEquals returns true if both are nil, or both are non-nil and equal.
func floatPtrEquals(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return floatEquals(*a, *b)
}

func intPtrEquals(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timePtrEquals(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
