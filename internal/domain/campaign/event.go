package campaign

import (
	"context"
	"time"
)

// ActionEvent is emitted once per action after it reaches a final state.
type ActionEvent struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Wallet    string    `json:"wallet"`
	Campaign  string    `json:"campaign"`
	Amount    uint64    `json:"amount"`
	Signature string    `json:"signature,omitempty"`
	State     State     `json:"state"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// EventPublisher forwards action events, e.g. onto Kafka.
type EventPublisher interface {
	Publish(ctx context.Context, event ActionEvent) error
}

// NopPublisher drops events.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, ActionEvent) error { return nil }
