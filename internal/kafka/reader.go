package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"payflow/internal/config"
	"payflow/internal/events"
)

var (
	readErrorCounter      = metrics.GetOrCreateCounter(`kafka_reader_total{result="read_error",type="payment_flow_event"}`)
	unmarshalErrorCounter = metrics.GetOrCreateCounter(`kafka_reader_total{result="unmarshal_error",type="payment_flow_event"}`)
	processErrorCounter   = metrics.GetOrCreateCounter(`kafka_reader_total{result="process_error",type="payment_flow_event"}`)
	readSuccessCounter    = metrics.GetOrCreateCounter(`kafka_reader_total{result="success",type="payment_flow_event"}`)
)

func NewReader(cfg config.Kafka, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: strings.Split(cfg.Broker.URL, ","),
		GroupID: groupID,
		Topic:   cfg.Topic.PaymentFlowEvents,
	})
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// ReadFlowEvents hands every decoded flow event to handle until ctx is done.
// Undecodable messages and handler errors are logged and skipped.
func ReadFlowEvents(ctx context.Context, reader messageReader, logger *slog.Logger, handle func(context.Context, events.FlowEvent) error) error {
	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.ErrorContext(ctx, "Error reading message", "error", err)
			readErrorCounter.Inc()
			return errors.Wrap(err, "read flow event")
		}

		var event events.FlowEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			logger.ErrorContext(ctx, "Error unmarshalling message", "error", err, "offset", m.Offset)
			unmarshalErrorCounter.Inc()
			continue
		}

		if err := handle(ctx, event); err != nil {
			logger.ErrorContext(ctx, "Error processing message", "error", err, "id", event.ID)
			processErrorCounter.Inc()
			continue
		}
		readSuccessCounter.Inc()
	}
}
