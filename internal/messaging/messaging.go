package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/casadx/pedidos/internal/config"
	"github.com/casadx/pedidos/internal/logger"
)

// Message is an outbound event.
type Message struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Publisher is the pluggable event sink.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Topic() string
}

// defaultBatchTimeout caps how long a synchronous write waits for its batch.
const defaultBatchTimeout = 10 * time.Millisecond

// Module wires the publisher.
var Module = fx.Provide(NewPublisher)

// Noop returns a publisher that drops every message.
func Noop(topic string) Publisher {
	return noopPublisher{topic: topic}
}

type noopPublisher struct {
	topic string
}

func (n noopPublisher) Publish(context.Context, Message) error { return nil }
func (n noopPublisher) Topic() string                          { return n.topic }

// kafkaPublisher implements Publisher via kafka-go.
type kafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

func (k *kafkaPublisher) Publish(ctx context.Context, msg Message) error {
	out := kafka.Message{Key: msg.Key, Value: msg.Value}
	for name, value := range msg.Headers {
		out.Headers = append(out.Headers, kafka.Header{Key: name, Value: []byte(value)})
	}
	return k.writer.WriteMessages(ctx, out)
}

func (k *kafkaPublisher) Topic() string { return k.topic }

// NewPublisher builds a publisher based on configuration.
func NewPublisher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Publisher, error) {
	if !cfg.Messaging.Enabled || cfg.Messaging.Driver == "noop" {
		log.Info("messaging disabled; using noop publisher")

		return Noop(cfg.Messaging.Kafka.Topic), nil
	}

	switch cfg.Messaging.Driver {
	case "kafka":
		return newKafkaPublisher(lc, cfg.Messaging.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

func newKafkaPublisher(lc fx.Lifecycle, cfg config.Kafka, log *zap.Logger) Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: batchTimeout(cfg.BatchTimeout),
		WriteTimeout: cfg.ConnectTimeout,
		Transport: &kafka.Transport{
			ClientID:    cfg.ClientID,
			DialTimeout: cfg.ConnectTimeout,
		},
		Logger:      logger.NewPrinter(log, "kafka", zapcore.DebugLevel),
		ErrorLogger: logger.NewPrinter(log, "kafka", zapcore.ErrorLevel),
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing kafka publisher")

			return writer.Close()
		},
	})

	return &kafkaPublisher{writer: writer, topic: cfg.Topic}
}

func batchTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultBatchTimeout
	}
	return d
}
