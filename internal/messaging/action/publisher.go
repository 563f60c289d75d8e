package action

import (
	"context"
	"encoding/json"

	"crowdfund/internal/domain/campaign"
	"crowdfund/internal/kafka"
)

// Publisher converts action events into Kafka messages keyed by wallet.
type Publisher struct {
	producer *kafka.Producer
}

// NewPublisher constructs a Publisher.
func NewPublisher(producer *kafka.Producer) *Publisher {
	return &Publisher{producer: producer}
}

// Publish implements campaign.EventPublisher.
func (p *Publisher) Publish(ctx context.Context, event campaign.ActionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.producer.Send(ctx, event.Wallet, payload)
}
