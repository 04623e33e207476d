package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"signal-backtest-lab/internal/config"
	"signal-backtest-lab/internal/telemetry"
)

// NewPublisher builds the audit publisher of the commands: events are always
// logged and, when Kafka is configured, also sent to the collector topic.
// extra sinks (the live WebSocket stream) receive every event too.
// Delivery runs behind a bounded async buffer. The returned close flushes it.
func NewPublisher(ctx context.Context, env config.Env, logger *zap.Logger, extra ...telemetry.Publisher) (telemetry.Publisher, func(), error) {
	sinks := telemetry.Fanout{telemetry.NewLogPublisher(logger)}
	sinks = append(sinks, extra...)
	closers := []func(){}

	if env.TelemetryEnabled() {
		telemetry.EnsureTopic(ctx, env.KafkaBrokers[0], env.KafkaTopic, logger)

		kp, err := telemetry.NewKafkaPublisher(telemetry.KafkaConfig{
			Brokers:      env.KafkaBrokers,
			Topic:        env.KafkaTopic,
			Index:        env.TelemetryIndex,
			WriteTimeout: env.TelemetryTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("kafka publisher: %w", err)
		}
		sinks = append(sinks, kp)
		closers = append(closers, func() {
			if err := kp.Close(); err != nil {
				logger.Warn("close kafka publisher", zap.Error(err))
			}
		})
	}

	async := telemetry.NewAsync(sinks, env.TelemetryBuffer, env.TelemetryTimeout, logger)
	closeAll := func() {
		async.Close()
		for _, c := range closers {
			c()
		}
	}
	return async, closeAll, nil
}
