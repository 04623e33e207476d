package domain

import (
	"errors"
	"time"
)

// ErrTradeEnded is returned when a closed trade record is mutated.
var ErrTradeEnded = errors.New("trade record already ended")

// EndReason describes why a position was closed.
type EndReason string

// End reason codes.
const (
	EndReasonModel EndReason = "ml_model"
	EndReasonTP    EndReason = "tp_hit"
	EndReasonSL    EndReason = "sl_hit"
	EndReasonTTL   EndReason = "ttl_hit"
)

// EndReasons lists every end reason in reporting order.
var EndReasons = []EndReason{EndReasonModel, EndReasonTP, EndReasonSL, EndReasonTTL}

// Verdict constants
const (
	VerdictWin  = "WIN"
	VerdictLoss = "LOSS"
)

// TradeRecord is the lifecycle record of a single position.
// While open only the entry side and the observed price extremes change.
// Close freezes every derived field; an ended record is never mutated again.
type TradeRecord struct {
	TradeID string `json:"trade_id"` // hash of run name and entry time
	RunID   string `json:"run_id"`

	// Entry
	BeforeTradeCapital float64   `json:"before_trade_capital"`
	PositionCapital    float64   `json:"position_capital"` // min(capital, max position capital)
	EntryPrice         float64   `json:"entry_price"`
	EntryTime          time.Time `json:"start_time"`
	Size               float64   `json:"size"`    // units, net of buy fee
	BuyFee             float64   `json:"buy_fee"` // currency
	FeeRate            float64   `json:"fee_percentage"`

	// Risk parameters in force for this trade (nil = not configured)
	TP  *float64 `json:"tp"`
	SL  *float64 `json:"sl"`
	TTL *int     `json:"ttl"` // minutes

	// Exit
	SellPrice float64    `json:"sell_price"`
	SellFee   float64    `json:"sell_fee"`
	EndTime   *time.Time `json:"end_time"` // nil while open
	EndReason EndReason  `json:"end_reason"`

	// Derived on close
	DurationMinutes    int64   `json:"trade_duration"`
	TotalFee           float64 `json:"total_fee"`
	Profit             float64 `json:"profit"` // fees included
	ProfitPercentage   float64 `json:"profit_percentage"`
	PriceChange        float64 `json:"price_change"` // (sell - entry) / 100, not a percentage
	MaxDrawdown        float64 `json:"max_drawdown"`
	HighestPossibleWin float64 `json:"highest_possible_win"`
	Verdict            string  `json:"trade_verdict"`

	// Observed extremes while open
	LowestPrice  float64 `json:"lowest_price"`
	HighestPrice float64 `json:"highest_price"`
}

// Ended reports whether the trade has been closed.
func (t *TradeRecord) Ended() bool {
	return t.EndTime != nil
}

// ObservePrice widens the running lowest/highest price with a new observation.
func (t *TradeRecord) ObservePrice(price float64) error {
	if t.Ended() {
		return ErrTradeEnded
	}
	if price < t.LowestPrice {
		t.LowestPrice = price
	}
	if price > t.HighestPrice {
		t.HighestPrice = price
	}
	return nil
}

// Close finalizes the trade at sellPrice and computes all derived metrics.
func (t *TradeRecord) Close(sellPrice, sellFee float64, endTime time.Time, reason EndReason) error {
	if t.Ended() {
		return ErrTradeEnded
	}

	t.SellPrice = sellPrice
	t.SellFee = sellFee
	end := endTime
	t.EndTime = &end
	t.EndReason = reason

	t.DurationMinutes = int64(endTime.Sub(t.EntryTime) / time.Minute)
	t.TotalFee = t.BuyFee + sellFee

	t.Profit = sellPrice*t.Size*(1-t.FeeRate) - t.PositionCapital
	t.ProfitPercentage = t.Profit / t.PositionCapital
	t.PriceChange = (sellPrice - t.EntryPrice) / 100

	t.MaxDrawdown = (t.EntryPrice - t.LowestPrice) / t.EntryPrice
	t.HighestPossibleWin = (t.HighestPrice - t.EntryPrice) / t.EntryPrice

	t.Verdict = VerdictLoss
	if t.ProfitPercentage > 0 {
		t.Verdict = VerdictWin
	}
	return nil
}

// IsWin reports whether a closed trade is a winner.
func (t *TradeRecord) IsWin() bool {
	return t.Verdict == VerdictWin
}
