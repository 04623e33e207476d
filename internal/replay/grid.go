package replay

import (
	"fmt"
	"time"

	"signal-backtest-lab/internal/domain"
)

// DecisionRows returns the decision timestamps of a raw dataset: the rows left
// after the first windowLength-1 are consumed by feature construction.
// Row i of the result carries prediction index i.
func DecisionRows(rowTimes []time.Time, windowLength int) ([]domain.DecisionRow, error) {
	if windowLength < 1 {
		return nil, fmt.Errorf("%w: window length %d", ErrNoDecisions, windowLength)
	}
	if len(rowTimes) < windowLength {
		return nil, fmt.Errorf("%w: %d rows, window length %d", ErrNoDecisions, len(rowTimes), windowLength)
	}

	trimmed := rowTimes[windowLength-1:]
	rows := make([]domain.DecisionRow, len(trimmed))
	for i, ts := range trimmed {
		rows[i] = domain.DecisionRow{Time: ts, Index: i}
	}
	return rows, nil
}

// DecisionSpan returns the inclusive time range the grid of decisions covers.
func DecisionSpan(decisions []domain.DecisionRow) (from, to time.Time, err error) {
	if len(decisions) == 0 {
		return time.Time{}, time.Time{}, ErrNoDecisions
	}
	return decisions[0].Time, decisions[len(decisions)-1].Time.Add(time.Minute), nil
}

// BuildGrid builds the per-minute event stream covering
// [first decision, last decision + 1 minute].
//
// Every grid minute must have a close in prices. Decision indices are attached
// at their timestamps; for timeframe > 1 they are moved timeframe-1 minutes
// later in the grid and indices moved past the last minute are dropped.
func BuildGrid(prices []*domain.MinuteClose, decisions []domain.DecisionRow, timeframe int) ([]*Event, error) {
	if timeframe < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTimeframe, timeframe)
	}
	from, to, err := DecisionSpan(decisions)
	if err != nil {
		return nil, err
	}

	if err := validateDecisions(decisions); err != nil {
		return nil, err
	}
	closes, err := indexCloses(prices)
	if err != nil {
		return nil, err
	}

	n := int(to.Sub(from)/time.Minute) + 1
	events := make([]*Event, n)
	for i := range events {
		ts := from.Add(time.Duration(i) * time.Minute)
		price, ok := closes[ts.UnixMilli()]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingPrice, ts)
		}
		events[i] = &Event{Time: ts, Price: price}
	}

	shift := timeframe - 1
	for _, d := range decisions {
		slot := int(d.Time.Sub(from)/time.Minute) + shift
		if slot >= n {
			continue
		}
		idx := d.Index
		events[slot].PredictionIndex = &idx
	}

	return events, nil
}

func validateDecisions(decisions []domain.DecisionRow) error {
	for i, d := range decisions {
		if !aligned(d.Time) {
			return fmt.Errorf("%w: decision %s", ErrNotMinuteAligned, d.Time)
		}
		if i > 0 && !d.Time.After(decisions[i-1].Time) {
			return fmt.Errorf("%w: decision %s after %s", ErrInvalidOrdering, d.Time, decisions[i-1].Time)
		}
	}
	return nil
}

func indexCloses(prices []*domain.MinuteClose) (map[int64]float64, error) {
	closes := make(map[int64]float64, len(prices))
	for _, p := range prices {
		if !aligned(p.Time) {
			return nil, fmt.Errorf("%w: price %s", ErrNotMinuteAligned, p.Time)
		}
		key := p.Time.UnixMilli()
		if _, dup := closes[key]; dup {
			return nil, fmt.Errorf("%w: duplicate price at %s", ErrInvalidOrdering, p.Time)
		}
		closes[key] = p.Close
	}
	return closes, nil
}

func aligned(ts time.Time) bool {
	return ts.Truncate(time.Minute).Equal(ts)
}
