package telemetry

import (
	"context"

	"go.uber.org/zap"
)

// LogPublisher writes audit events to a zap logger.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a publisher logging at info level.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger.Named("audit")}
}

// Publish implements Publisher.
func (p *LogPublisher) Publish(_ context.Context, ev *Event) error {
	fields := []zap.Field{
		zap.Time("time", ev.Time),
		zap.String("log_type", string(ev.Type)),
		zap.String("run_name", ev.RunName),
	}
	switch ev.Type {
	case EventPrediction:
		fields = append(fields,
			zap.Float64("price", ev.Price),
			zap.String("prediction", string(ev.Prediction)),
		)
	case EventTrade:
		if ev.Trade != nil {
			fields = append(fields,
				zap.String("trade_id", ev.Trade.TradeID),
				zap.Float64("entry_price", ev.Trade.EntryPrice),
				zap.Float64("sell_price", ev.Trade.SellPrice),
				zap.Float64("profit", ev.Trade.Profit),
				zap.String("end_reason", string(ev.Trade.EndReason)),
				zap.String("verdict", ev.Trade.Verdict),
			)
		}
	}
	p.logger.Info("audit event", fields...)
	return nil
}

var _ Publisher = (*LogPublisher)(nil)
