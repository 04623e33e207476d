package metrics

import (
	"errors"
	"fmt"
)

// Reasons a summary metric can be undefined.
var (
	// ErrNoTrades is returned when no closed trades are available.
	ErrNoTrades = errors.New("no closed trades")

	// ErrNoWinningTrades is returned for metrics over winning trades when there are none.
	ErrNoWinningTrades = errors.New("no winning trades")

	// ErrNoLosingTrades is returned for metrics over losing trades when there are none.
	ErrNoLosingTrades = errors.New("no losing trades")

	// ErrZeroDenominator is returned when a ratio's denominator is zero.
	ErrZeroDenominator = errors.New("zero denominator")
)

// UndefinedMetricError reports a summary metric that could not be computed.
type UndefinedMetricError struct {
	Metric string
	Err    error
}

func (e *UndefinedMetricError) Error() string {
	return fmt.Sprintf("metric %s undefined: %v", e.Metric, e.Err)
}

func (e *UndefinedMetricError) Unwrap() error {
	return e.Err
}
