// Package telemetry delivers structured audit events of a backtest run.
// Delivery is best-effort: callers log failures and carry on.
package telemetry

import (
	"context"
	"errors"
	"time"

	"signal-backtest-lab/internal/domain"
)

// ErrBufferFull is returned by Async when an event had to be dropped.
var ErrBufferFull = errors.New("telemetry buffer full, event dropped")

// ErrClosed is returned when publishing on a closed publisher.
var ErrClosed = errors.New("telemetry publisher closed")

// EventType identifies the kind of audit event.
type EventType string

// Event types.
const (
	EventPrediction EventType = "model_prediction"
	EventTrade      EventType = "trade"
)

// Event is one audit record.
// Prediction events carry Price and Prediction, trade events carry Trade.
type Event struct {
	Time       time.Time           `json:"@time"`
	Type       EventType           `json:"log_type"`
	RunName    string              `json:"run_name"`
	Index      string              `json:"index,omitempty"`
	Price      float64             `json:"price,omitempty"`
	Prediction domain.Label        `json:"prediction,omitempty"`
	Trade      *domain.TradeRecord `json:"trade,omitempty"`
}

// Publisher delivers audit events.
type Publisher interface {
	Publish(ctx context.Context, ev *Event) error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, *Event) error { return nil }

// Fanout publishes each event to every publisher and joins the errors.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(ctx context.Context, ev *Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Publisher = Nop{}
	_ Publisher = Fanout(nil)
)
