package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"crowdfund/internal/observability/metrics"
)

// Message is a consumed record.
type Message struct {
	Key       string
	Value     []byte
	Partition int32
	Offset    int64
}

// MessageHandler reacts to consumed records.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message) error
}

// HandlerFunc allows using functions as MessageHandler.
type HandlerFunc func(ctx context.Context, msg Message) error

// HandleMessage satisfies MessageHandler.
func (f HandlerFunc) HandleMessage(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// RetryDelay is how long Start waits before rejoining the group after a
// failed session.
var RetryDelay = 2 * time.Second

// Consumer runs a consumer group on one topic. Handler errors are logged and
// the offset is committed anyway; the journal is best effort.
type Consumer struct {
	group   sarama.ConsumerGroup
	topic   string
	handler MessageHandler
	log     zerolog.Logger
}

// NewConsumer joins groupID on topic.
func NewConsumer(brokers []string, groupID, topic string, handler MessageHandler, log zerolog.Logger) (*Consumer, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_5_0_0
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRange()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	group, err := sarama.NewConsumerGroup(cleanBrokers(brokers), groupID, cfg)
	if err != nil {
		return nil, err
	}
	return newConsumer(group, topic, handler, log), nil
}

func newConsumer(group sarama.ConsumerGroup, topic string, handler MessageHandler, log zerolog.Logger) *Consumer {
	return &Consumer{
		group:   group,
		topic:   topic,
		handler: handler,
		log:     log.With().Str("component", "kafka_consumer").Str("topic", topic).Logger(),
	}
}

// Start consumes until ctx is canceled or the group is closed. Session
// errors are logged and the group is rejoined after RetryDelay.
func (c *Consumer) Start(ctx context.Context) error {
	gh := &groupHandler{consumer: c}
	for {
		err := c.group.Consume(ctx, []string{c.topic}, gh)
		switch {
		case errors.Is(err, sarama.ErrClosedConsumerGroup):
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			c.log.Warn().Err(err).Dur("retry_in", RetryDelay).Msg("consumer session failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(RetryDelay):
			}
		}
	}
}

// Close leaves the group.
func (c *Consumer) Close() error {
	return c.group.Close()
}

func (c *Consumer) process(ctx context.Context, m *sarama.ConsumerMessage) {
	start := time.Now()
	defer func() { metrics.ObserveKafkaOperation("consumer_message", time.Since(start)) }()

	msg := Message{Key: string(m.Key), Value: m.Value, Partition: m.Partition, Offset: m.Offset}
	if err := c.handler.HandleMessage(ctx, msg); err != nil {
		c.log.Error().Err(err).
			Str("key", msg.Key).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("handler error")
	}
}

type groupHandler struct {
	consumer *Consumer
}

func (*groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (*groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case m, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.consumer.process(session.Context(), m)
			session.MarkMessage(m, "")
		}
	}
}
