package replay

import "errors"

var (
	// ErrMissingPrice is returned when a grid minute has no close price.
	ErrMissingPrice = errors.New("missing minute close price")

	// ErrInvalidOrdering is returned when decision or price times are not strictly ascending.
	ErrInvalidOrdering = errors.New("timestamps are not in ascending order")

	// ErrNotMinuteAligned is returned for timestamps with a sub-minute component.
	ErrNotMinuteAligned = errors.New("timestamp is not aligned to a minute")

	// ErrNoDecisions is returned when fewer rows than the window length are available.
	ErrNoDecisions = errors.New("no decision rows after window trimming")

	// ErrInvalidTimeframe is returned for a timeframe below one minute.
	ErrInvalidTimeframe = errors.New("timeframe must be at least 1 minute")
)
