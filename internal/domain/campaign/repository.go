package campaign

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"crowdfund/internal/chain"
	"crowdfund/internal/program"
)

// SnapshotStore persists the last successfully fetched campaign list.
type SnapshotStore interface {
	Save(ctx context.Context, campaigns []Campaign) error
	Load(ctx context.Context) ([]Campaign, error)
}

// MemorySnapshots keeps the snapshot in process.
type MemorySnapshots struct {
	mu        sync.Mutex
	campaigns []Campaign
}

// Save implements SnapshotStore.
func (m *MemorySnapshots) Save(_ context.Context, campaigns []Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns = append([]Campaign(nil), campaigns...)
	return nil
}

// Load implements SnapshotStore.
func (m *MemorySnapshots) Load(context.Context) ([]Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Campaign(nil), m.campaigns...), nil
}

// Repository mirrors the program's campaign accounts. The list is replaced
// wholesale on every reload; failed reloads keep the previous list.
type Repository struct {
	client    chain.Client
	programID solana.PublicKey
	snapshots SnapshotStore
	log       zerolog.Logger

	mu        sync.RWMutex
	campaigns []Campaign
	loadedAt  time.Time
}

// NewRepository builds a repository. snapshots may be nil.
func NewRepository(client chain.Client, programID solana.PublicKey, snapshots SnapshotStore, log zerolog.Logger) *Repository {
	if snapshots == nil {
		snapshots = &MemorySnapshots{}
	}
	return &Repository{
		client:    client,
		programID: programID,
		snapshots: snapshots,
		log:       log.With().Str("component", "campaign_repository").Logger(),
	}
}

// ProgramID returns the program whose accounts are listed.
func (r *Repository) ProgramID() solana.PublicKey { return r.programID }

// List fetches and decodes every campaign account without touching the cache.
// A single undecodable account fails the whole call.
func (r *Repository) List(ctx context.Context) ([]Campaign, error) {
	accounts, err := r.client.ProgramAccounts(ctx, r.programID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	list := make([]Campaign, 0, len(accounts))
	for _, acc := range accounts {
		decoded, err := program.DecodeCampaign(acc.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: account %s: %w", ErrFetch, acc.Address, err)
		}
		list = append(list, Campaign{
			Address:       acc.Address,
			Name:          decoded.Name,
			Description:   decoded.Description,
			AmountDonated: decoded.AmountDonated,
			Admin:         decoded.Admin,
		})
	}
	sortCampaigns(list)
	return list, nil
}

// Reload fetches the list and replaces the cached copy on success.
func (r *Repository) Reload(ctx context.Context) ([]Campaign, error) {
	list, err := r.List(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("reload campaigns")
		return nil, err
	}
	r.mu.Lock()
	r.campaigns = list
	r.loadedAt = time.Now()
	r.mu.Unlock()

	if err := r.snapshots.Save(ctx, list); err != nil {
		r.log.Warn().Err(err).Msg("save campaign snapshot")
	}
	r.log.Debug().Int("count", len(list)).Msg("campaigns reloaded")
	return copyList(list), nil
}

// Snapshot returns the cached list, warming it from the snapshot store when
// nothing has been loaded in this process yet.
func (r *Repository) Snapshot(ctx context.Context) []Campaign {
	r.mu.RLock()
	loaded := !r.loadedAt.IsZero()
	list := copyList(r.campaigns)
	r.mu.RUnlock()
	if loaded {
		return list
	}

	stored, err := r.snapshots.Load(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("load campaign snapshot")
		return list
	}
	return stored
}

// Find looks up a cached campaign by address.
func (r *Repository) Find(ctx context.Context, addr solana.PublicKey) (Campaign, error) {
	for _, c := range r.Snapshot(ctx) {
		if c.Address.Equals(addr) {
			return c, nil
		}
	}
	return Campaign{}, fmt.Errorf("%w: %s", ErrCampaignNotFound, addr)
}

func copyList(list []Campaign) []Campaign {
	if list == nil {
		return nil
	}
	return append([]Campaign(nil), list...)
}
