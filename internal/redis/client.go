package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goRedis "github.com/redis/go-redis/v9"

	"crowdfund/internal/domain/campaign"
	"crowdfund/internal/observability/metrics"
)

// Client wraps go-redis and stores the shared campaign list snapshot.
type Client struct {
	rdb       *goRedis.Client
	namespace string
	ttl       time.Duration
}

// New creates a Redis client and verifies connectivity.
func New(addr, namespace string, ttl time.Duration) (*Client, error) {
	rdb := goRedis.NewClient(&goRedis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	if namespace == "" {
		namespace = "crowdfund"
	}
	return &Client{rdb: rdb, namespace: namespace, ttl: ttl}, nil
}

// Close shuts down the underlying Redis client.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SnapshotKey holds the JSON encoded campaign list for a program.
func (c *Client) SnapshotKey() string {
	return c.namespace + ":campaigns:snapshot"
}

// Save implements campaign.SnapshotStore.
func (c *Client) Save(ctx context.Context, campaigns []campaign.Campaign) error {
	start := time.Now()
	defer func() { metrics.ObserveRedisOperation("save_snapshot", time.Since(start)) }()
	payload, err := json.Marshal(campaigns)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.SnapshotKey(), payload, c.ttl).Err()
}

// Load implements campaign.SnapshotStore. A missing snapshot is an empty list.
func (c *Client) Load(ctx context.Context) ([]campaign.Campaign, error) {
	start := time.Now()
	defer func() { metrics.ObserveRedisOperation("load_snapshot", time.Since(start)) }()
	payload, err := c.rdb.Get(ctx, c.SnapshotKey()).Bytes()
	if errors.Is(err, goRedis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var campaigns []campaign.Campaign
	if err := json.Unmarshal(payload, &campaigns); err != nil {
		return nil, err
	}
	return campaigns, nil
}
