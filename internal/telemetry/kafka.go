package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaConfig configures the Kafka audit publisher.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	Index        string        // search index name stamped on each event
	MaxAttempts  int           // writer retry budget per batch
	WriteTimeout time.Duration // per-message bound on broker I/O
}

// messageWriter is the subset of kafka.Writer used by the publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes audit events as JSON messages.
// The underlying writer redials brokers on failure; a message that still fails
// within the retry budget is returned as an error and not retried again.
type KafkaPublisher struct {
	writer  messageWriter
	index   string
	timeout time.Duration
}

// NewKafkaPublisher constructs a publisher backed by a kafka.Writer.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka publisher: empty topic")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Second
	}

	dialer := &kafka.Dialer{
		Timeout:   cfg.WriteTimeout,
		DualStack: true,
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		Dialer:       dialer,
		MaxAttempts:  cfg.MaxAttempts,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: int(kafka.RequireOne),
	})

	return newKafkaPublisher(w, cfg.Index, cfg.WriteTimeout), nil
}

func newKafkaPublisher(w messageWriter, index string, timeout time.Duration) *KafkaPublisher {
	return &KafkaPublisher{writer: w, index: index, timeout: timeout}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, ev *Event) error {
	msg := *ev
	msg.Index = p.index

	value, err := json.Marshal(&msg)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.RunName),
		Value: value,
		Time:  ev.Time,
	})
	if err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// EnsureTopic attempts to create the topic (best-effort).
func EnsureTopic(ctx context.Context, broker, topic string, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		logger.Warn("ensure topic: dial failed", zap.String("broker", broker), zap.Error(err))
		return
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Info("ensure topic: create failed (ok if exists)", zap.String("topic", topic), zap.Error(err))
	}
}

var _ Publisher = (*KafkaPublisher)(nil)
