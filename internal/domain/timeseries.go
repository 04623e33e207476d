package domain

import "time"

// MinuteClose is one minute of the close price series.
// Corresponds to minute_close_prices table in ClickHouse.
type MinuteClose struct {
	Symbol string    // instrument, e.g. "BTCUSDT"
	Time   time.Time // minute open time (UTC, truncated to the minute)
	Close  float64   // close price of that minute
}

// DecisionRow is one row of the prediction grid after window trimming.
// Index points into the precomputed prediction array.
type DecisionRow struct {
	Time  time.Time
	Index int
}
