package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"payflow/internal/config"
	"payflow/internal/events"
)

var (
	publishErrorCounter   = metrics.GetOrCreateCounter(`kafka_writer_total{result="publish_error",type="payment_flow_event"}`)
	publishSuccessCounter = metrics.GetOrCreateCounter(`kafka_writer_total{result="success",type="payment_flow_event"}`)
)

func NewWriter(cfg config.Kafka) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Broker.URL),
		Topic:                  cfg.Topic.PaymentFlowEvents,
		Balancer:               &kafka.ReferenceHash{},
		BatchSize:              cfg.Writer.BatchSize,
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           time.Duration(cfg.Writer.BatchTimeoutMs) * time.Millisecond,
		Async:                  false,
		AllowAutoTopicCreation: false,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher writes flow events to Kafka keyed by order id so that all events
// of one order land on the same partition.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

func NewPublisher(writer messageWriter, logger *slog.Logger) *Publisher {
	return &Publisher{writer: writer, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, event events.FlowEvent) error {
	msg, err := toMessage(event)
	if err != nil {
		publishErrorCounter.Inc()
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.ErrorContext(ctx, "Error writing flow event to Kafka", "type", event.Type, "error", err)
		publishErrorCounter.Inc()
		return errors.Wrap(err, "write flow event")
	}

	p.logger.DebugContext(ctx, "Flow event published", "type", event.Type, "id", event.ID)
	publishSuccessCounter.Inc()
	return nil
}

func toMessage(event events.FlowEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, errors.Wrap(err, "marshal flow event")
	}

	return kafka.Message{
		Key:   []byte(event.OrderID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}, nil
}
