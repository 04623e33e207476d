package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"signal-backtest-lab/internal/observability"
)

// Async decouples event delivery from the caller.
// Publish never blocks: events go to a bounded buffer drained by one worker,
// and an event that does not fit is dropped.
type Async struct {
	next    Publisher
	events  chan *Event
	timeout time.Duration
	logger  *zap.Logger
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts a worker delivering buffered events to next.
// Each delivery is bounded by timeout.
func NewAsync(next Publisher, buffer int, timeout time.Duration, logger *zap.Logger) *Async {
	if buffer <= 0 {
		buffer = 1024
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Async{
		next:    next,
		events:  make(chan *Event, buffer),
		timeout: timeout,
		logger:  logger.Named("telemetry"),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Publish enqueues ev without blocking.
func (a *Async) Publish(_ context.Context, ev *Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return ErrClosed
	}

	select {
	case a.events <- ev:
		return nil
	default:
		observability.RecordTelemetryDropped()
		return ErrBufferFull
	}
}

// Close stops accepting events and waits for the buffer to drain.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.events)
	a.mu.Unlock()

	<-a.done
}

func (a *Async) run() {
	defer close(a.done)

	for ev := range a.events {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		err := a.deliver(ctx, ev)
		cancel()

		observability.RecordTelemetry(err)
		if err != nil {
			a.logger.Warn("audit event dropped",
				zap.String("log_type", string(ev.Type)),
				zap.String("run_name", ev.RunName),
				zap.Error(err),
			)
		}
	}
}

// deliver converts a publisher panic into an error so the worker survives it.
func (a *Async) deliver(ctx context.Context, ev *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("publisher panic: %v", r)
		}
	}()
	return a.next.Publish(ctx, ev)
}

var _ Publisher = (*Async)(nil)
