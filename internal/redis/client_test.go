package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdfund/internal/domain/campaign"
)

func TestSnapshotRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(mr.Addr(), "test", time.Minute)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	empty, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	list := []campaign.Campaign{{
		Address:       solana.NewWallet().PublicKey(),
		Name:          "Campaign A",
		Description:   "desc",
		AmountDonated: 20_000_000,
		Admin:         solana.NewWallet().PublicKey(),
	}}
	require.NoError(t, c.Save(ctx, list))
	assert.True(t, mr.Exists("test:campaigns:snapshot"))
	assert.Equal(t, time.Minute, mr.TTL("test:campaigns:snapshot"))

	got, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, list, got)
}

func TestNewFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err := New(addr, "", 0)
	assert.Error(t, err)
}

var _ campaign.SnapshotStore = (*Client)(nil)
