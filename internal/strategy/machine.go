// Package strategy implements the single-position state machine driven by
// model predictions and per-minute prices.
package strategy

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/idhash"
	"signal-backtest-lab/internal/observability"
	"signal-backtest-lab/internal/telemetry"
)

// MachineOptions contains collaborators of a Machine.
type MachineOptions struct {
	RunID     string
	Publisher telemetry.Publisher // nil discards audit events
	Logger    *zap.Logger
	// LogTrades logs every buy and sell at info level instead of debug.
	LogTrades bool
}

// Machine is the position state machine of one run.
// It is FLAT when open is nil and OPEN otherwise. Closed records are
// append-only; the open slot never aliases an entry of closed.
type Machine struct {
	runName      string
	runID        string
	classes      int
	params       domain.RunParams
	buyWhileOpen domain.OpenSignalPolicy
	predictions  []int

	capital float64
	open    *domain.TradeRecord
	closed  []*domain.TradeRecord

	lastTime time.Time
	started  bool
	ended    bool

	publisher  telemetry.Publisher
	logger     *zap.Logger
	tradeLevel zapcore.Level
}

// NewMachine creates a FLAT machine holding the run's initial capital.
// predictions is read-only and may be shared between machines.
func NewMachine(cfg domain.RunConfig, predictions []int, opts MachineOptions) (*Machine, error) {
	if cfg.Classes != 2 && cfg.Classes != 3 {
		return nil, fmt.Errorf("%w: got %d", ErrUnsupportedClasses, cfg.Classes)
	}

	publisher := opts.Publisher
	if publisher == nil {
		publisher = telemetry.Nop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tradeLevel := zapcore.DebugLevel
	if opts.LogTrades {
		tradeLevel = zapcore.InfoLevel
	}

	policy := cfg.Params.BuyWhileOpen
	if policy == "" {
		policy = domain.OpenSignalClose
	}

	return &Machine{
		runName:      cfg.RunName,
		runID:        opts.RunID,
		classes:      cfg.Classes,
		params:       cfg.Params,
		buyWhileOpen: policy,
		predictions:  predictions,
		capital:      cfg.Params.InitialCapital,
		publisher:    publisher,
		logger:       logger,
		tradeLevel:   tradeLevel,
	}, nil
}

// Notify processes one minute. predictionIdx is nil between decision points,
// in which case only the exit checks of an open position run.
func (m *Machine) Notify(ctx context.Context, ts time.Time, predictionIdx *int, price float64) error {
	if m.ended {
		return ErrEnded
	}
	if m.started && ts.Before(m.lastTime) {
		return fmt.Errorf("%w: %s before %s", ErrNonMonotonicTime, ts, m.lastTime)
	}
	m.started = true
	m.lastTime = ts

	if m.open != nil {
		if err := m.open.ObservePrice(price); err != nil {
			return err
		}
	}

	if predictionIdx == nil {
		if m.open != nil {
			return m.exitChecks(ctx, ts, price)
		}
		return nil
	}

	idx := *predictionIdx
	if idx < 0 || idx >= len(m.predictions) {
		return fmt.Errorf("%w: %d of %d", ErrPredictionIndex, idx, len(m.predictions))
	}
	label, err := ResolveLabel(m.classes, m.predictions[idx])
	if err != nil {
		return err
	}

	switch label {
	case domain.LabelBuy:
		switch {
		case m.open == nil:
			err = m.openPosition(ts, price)
		case m.buyWhileOpen == domain.OpenSignalExitChecks:
			err = m.exitChecks(ctx, ts, price)
		default:
			err = m.closePosition(ctx, ts, price, domain.EndReasonModel)
		}
	case domain.LabelHold:
		if m.open != nil {
			err = m.exitChecks(ctx, ts, price)
		}
	case domain.LabelSell:
		if m.open != nil {
			err = m.closePosition(ctx, ts, price, domain.EndReasonModel)
		}
	}
	if err != nil {
		return err
	}

	observability.RecordDecision(string(label))
	m.emit(ctx, &telemetry.Event{
		Time:       ts,
		Type:       telemetry.EventPrediction,
		RunName:    m.runName,
		Price:      price,
		Prediction: label,
	})
	return nil
}

// End finalizes the run. A position still open is discarded: it never
// resolved and contributes nothing to the results.
func (m *Machine) End(_ context.Context) {
	if m.ended {
		return
	}
	m.ended = true

	if m.open != nil {
		m.logger.Debug("discarding open position at end of replay",
			zap.Time("entry_time", m.open.EntryTime),
			zap.Float64("entry_price", m.open.EntryPrice),
		)
		observability.RecordTradeDiscarded()
		m.open = nil
	}
}

// exitChecks evaluates take-profit, stop-loss and time-to-live in that order.
// The first one that fires closes the position.
func (m *Machine) exitChecks(ctx context.Context, ts time.Time, price float64) error {
	t := m.open
	entry := t.EntryPrice

	// Levels are computed as entry ± entry*ratio, not entry*(1±ratio): the two
	// forms can round differently and stored runs use this one.
	if m.params.TP != nil && entry+entry*(*m.params.TP) <= price {
		return m.closePosition(ctx, ts, price, domain.EndReasonTP)
	}
	if m.params.SL != nil && price < entry-entry*(*m.params.SL) {
		return m.closePosition(ctx, ts, price, domain.EndReasonSL)
	}
	if m.params.TTL != nil && ts.Sub(t.EntryTime) >= time.Duration(*m.params.TTL)*time.Minute {
		return m.closePosition(ctx, ts, price, domain.EndReasonTTL)
	}
	return nil
}

func (m *Machine) openPosition(ts time.Time, price float64) error {
	if price <= 0 {
		return fmt.Errorf("%w: %v at %s", ErrInvalidPrice, price, ts)
	}

	fee := m.params.TradeFee
	positionCapital := min(m.capital, m.params.MaxPositionCapital)
	buyFee := fee * positionCapital
	size := positionCapital * (1 - fee) / price

	m.open = &domain.TradeRecord{
		TradeID:            idhash.ComputeTradeID(m.runName, ts.UnixMilli()),
		RunID:              m.runID,
		BeforeTradeCapital: m.capital,
		PositionCapital:    positionCapital,
		EntryPrice:         price,
		EntryTime:          ts,
		Size:               size,
		BuyFee:             buyFee,
		FeeRate:            fee,
		TP:                 copyPtr(m.params.TP),
		SL:                 copyPtr(m.params.SL),
		TTL:                copyPtr(m.params.TTL),
		LowestPrice:        price,
		HighestPrice:       price,
	}

	if ce := m.logger.Check(m.tradeLevel, "buy"); ce != nil {
		ce.Write(
			zap.Time("time", ts),
			zap.Float64("size", size),
			zap.Float64("price", price),
			zap.Float64("fee", buyFee),
		)
	}
	return nil
}

func (m *Machine) closePosition(ctx context.Context, ts time.Time, price float64, reason domain.EndReason) error {
	t := m.open
	sellFee := m.params.TradeFee * t.Size * price

	if err := t.Close(price, sellFee, ts, reason); err != nil {
		return err
	}
	m.capital += t.Profit
	m.closed = append(m.closed, t)
	m.open = nil

	if ce := m.logger.Check(m.tradeLevel, "sell"); ce != nil {
		ce.Write(
			zap.Time("time", ts),
			zap.Float64("size", t.Size),
			zap.Float64("price", price),
			zap.Float64("fee", sellFee),
			zap.Float64("total_fee", t.TotalFee),
			zap.Float64("profit", t.Profit),
			zap.Float64("profit_pct", t.ProfitPercentage),
			zap.Int64("duration_min", t.DurationMinutes),
			zap.String("reason", string(reason)),
		)
	}

	observability.RecordTradeClosed(string(reason))
	m.emit(ctx, &telemetry.Event{
		Time:    ts,
		Type:    telemetry.EventTrade,
		RunName: m.runName,
		Trade:   t,
	})
	return nil
}

// emit hands ev to the publisher. Delivery failures are logged, never returned.
func (m *Machine) emit(ctx context.Context, ev *telemetry.Event) {
	if err := m.publisher.Publish(ctx, ev); err != nil {
		m.logger.Warn("audit event not delivered",
			zap.String("log_type", string(ev.Type)),
			zap.Error(err),
		)
	}
}

// Capital returns the running account capital.
func (m *Machine) Capital() float64 {
	return m.capital
}

// Open returns the open position or nil when FLAT.
func (m *Machine) Open() *domain.TradeRecord {
	return m.open
}

// OpenCount returns the number of open positions (0 or 1).
func (m *Machine) OpenCount() int {
	if m.open == nil {
		return 0
	}
	return 1
}

// Trades returns the closed trades in closing order.
func (m *Machine) Trades() []*domain.TradeRecord {
	out := make([]*domain.TradeRecord, len(m.closed))
	copy(out, m.closed)
	return out
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
