package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"crowdfund/internal/observability/metrics"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS action_log (
    id          UUID PRIMARY KEY,
    kind        TEXT        NOT NULL,
    wallet      TEXT        NOT NULL,
    campaign    TEXT        NOT NULL,
    amount      BIGINT      NOT NULL DEFAULT 0,
    signature   TEXT        NOT NULL DEFAULT '',
    state       TEXT        NOT NULL,
    error       TEXT        NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS action_log_wallet_idx ON action_log (wallet, created_at DESC);
`

// Store wraps a pgx connection pool and exposes typed helpers.
type Store struct {
	pool *pgxpool.Pool
}

// ActionLog is one row of the action journal.
type ActionLog struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Wallet    string    `json:"wallet"`
	Campaign  string    `json:"campaign"`
	Amount    uint64    `json:"amount"`
	Signature string    `json:"signature,omitempty"`
	State     string    `json:"state"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases underlying connections.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema guarantees required tables exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.ObserveDBOperation("ensure_schema", time.Since(start)) }()
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

// InsertActionLog stores an action outcome. Redelivered events with the same
// id are ignored.
func (s *Store) InsertActionLog(ctx context.Context, entry ActionLog) error {
	start := time.Now()
	defer func() { metrics.ObserveDBOperation("insert_action_log", time.Since(start)) }()
	_, err := s.pool.Exec(ctx, `
        INSERT INTO action_log (id, kind, wallet, campaign, amount, signature, state, error, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (id) DO NOTHING
    `, entry.ID, entry.Kind, entry.Wallet, entry.Campaign, int64(entry.Amount),
		entry.Signature, entry.State, entry.Error, entry.CreatedAt)
	return err
}

// ListActionLogs returns the most recent actions of a wallet, newest first.
func (s *Store) ListActionLogs(ctx context.Context, wallet string, limit int) ([]ActionLog, error) {
	start := time.Now()
	defer func() { metrics.ObserveDBOperation("list_action_logs", time.Since(start)) }()
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
        SELECT id::text, kind, wallet, campaign, amount, signature, state, error, created_at
        FROM action_log
        WHERE wallet = $1
        ORDER BY created_at DESC
        LIMIT $2
    `, wallet, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ActionLog
	for rows.Next() {
		var (
			entry  ActionLog
			amount int64
		)
		if err := rows.Scan(&entry.ID, &entry.Kind, &entry.Wallet, &entry.Campaign, &amount,
			&entry.Signature, &entry.State, &entry.Error, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Amount = uint64(amount)
		items = append(items, entry)
	}
	return items, rows.Err()
}
