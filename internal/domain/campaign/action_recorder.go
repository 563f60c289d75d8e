package campaign

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"crowdfund/internal/db"
	"crowdfund/internal/observability/metrics"
)

// ActionLogWriter persists action journal rows.
type ActionLogWriter interface {
	InsertActionLog(ctx context.Context, entry db.ActionLog) error
}

// ActionRecorder persists action events into the journal.
type ActionRecorder struct {
	store ActionLogWriter
	log   zerolog.Logger
}

// NewActionRecorder builds a recorder.
func NewActionRecorder(store ActionLogWriter, log zerolog.Logger) *ActionRecorder {
	return &ActionRecorder{store: store, log: log}
}

// HandleAction stores one event. Replayed events are ignored by the store.
func (r *ActionRecorder) HandleAction(ctx context.Context, event ActionEvent) error {
	start := time.Now()
	defer func() { metrics.ObserveConsumerProcessing("handle_action", time.Since(start)) }()

	if err := r.store.InsertActionLog(ctx, db.ActionLog{
		ID:        event.ID,
		Kind:      string(event.Kind),
		Wallet:    event.Wallet,
		Campaign:  event.Campaign,
		Amount:    event.Amount,
		Signature: event.Signature,
		State:     string(event.State),
		Error:     event.Error,
		CreatedAt: event.Timestamp,
	}); err != nil {
		r.log.Error().Err(err).Str("action_id", event.ID).Str("wallet", event.Wallet).Msg("action recorder: insert failed")
		return err
	}
	return nil
}
