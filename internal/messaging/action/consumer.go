package action

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"crowdfund/internal/domain/campaign"
	"crowdfund/internal/kafka"
)

// Handler reacts to decoded action events.
type Handler interface {
	HandleAction(ctx context.Context, event campaign.ActionEvent) error
}

// HandlerFunc makes ordinary functions usable as action handlers.
type HandlerFunc func(ctx context.Context, event campaign.ActionEvent) error

// HandleAction implements Handler.
func (f HandlerFunc) HandleAction(ctx context.Context, event campaign.ActionEvent) error {
	return f(ctx, event)
}

// Decode returns a raw message handler that decodes action events and hands
// them to handler. Undecodable payloads are logged and skipped.
func Decode(handler Handler, log zerolog.Logger) kafka.HandlerFunc {
	return func(ctx context.Context, msg kafka.Message) error {
		var event campaign.ActionEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Warn().Err(err).Int64("offset", msg.Offset).Msg("action consumer decode error")
			return nil
		}
		if event.ID == "" {
			log.Warn().Msg("action consumer: event without id skipped")
			return nil
		}
		return handler.HandleAction(ctx, event)
	}
}

// Consumer wraps a low-level Kafka consumer and decodes action events.
type Consumer struct {
	consumer *kafka.Consumer
}

// NewConsumer wires the handler through the low-level consumer.
func NewConsumer(brokers []string, groupID, topic string, handler Handler, log zerolog.Logger) (*Consumer, error) {
	cons, err := kafka.NewConsumer(brokers, groupID, topic, Decode(handler, log), log)
	if err != nil {
		return nil, err
	}
	return &Consumer{consumer: cons}, nil
}

// Start begins consuming events.
func (c *Consumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// Close cleans up resources.
func (c *Consumer) Close() error {
	return c.consumer.Close()
}
