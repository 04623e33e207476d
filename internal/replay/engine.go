package replay

import (
	"context"
	"time"
)

// Event is one grid minute delivered to the engine.
type Event struct {
	Time time.Time
	// PredictionIndex points into the prediction array; nil between decisions.
	PredictionIndex *int
	Price           float64
}

// HasDecision reports whether a prediction is attached to this minute.
func (e *Event) HasDecision() bool {
	return e.PredictionIndex != nil
}

// ReplayEngine processes grid minutes in chronological order.
type ReplayEngine interface {
	// OnEvent is called for each minute in order.
	OnEvent(ctx context.Context, event *Event) error

	// OnEnd is called once after the final minute.
	OnEnd(ctx context.Context) error
}
