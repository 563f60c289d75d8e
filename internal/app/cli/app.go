// Package cli implements the crowdfund command line client.
package cli

import (
	"context"

	"github.com/rs/zerolog"

	shared "crowdfund/internal/config"
	"crowdfund/internal/chain"
	"crowdfund/internal/domain/campaign"
	"crowdfund/internal/profile"
	"crowdfund/internal/wallet"
)

// Config captures the CLI's environment.
type Config struct {
	shared.Chain
	Wallet shared.Wallet

	ProfileEndpoint string `env:"PROFILE_ENDPOINT" envDefault:"https://api.dscvr.one/graphql"`
}

// LoadConfig reads the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := shared.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ProfileFetcher looks up social profile data.
type ProfileFetcher interface {
	GetUserData(ctx context.Context, username string) (*profile.UserData, error)
}

// App is everything a command needs once the wallet is connected.
type App struct {
	Repository *campaign.Repository
	Actions    *campaign.Service
	Session    *wallet.Session
	Profiles   ProfileFetcher
}

// Builder connects the wallet and wires an App.
type Builder func(ctx context.Context) (*App, error)

// NewBuilder wires an App against the configured RPC endpoint and keypair.
func NewBuilder(cfg Config, log zerolog.Logger) Builder {
	return func(ctx context.Context) (*App, error) {
		endpoint, err := cfg.Endpoint()
		if err != nil {
			return nil, err
		}
		programID, err := cfg.Program()
		if err != nil {
			return nil, err
		}
		policy, err := cfg.Policy()
		if err != nil {
			return nil, err
		}
		provider, err := wallet.LoadKeypairProvider(cfg.Wallet.Path(), cfg.Wallet.Profile())
		if err != nil {
			return nil, err
		}
		session, err := provider.Connect(ctx)
		if err != nil {
			return nil, err
		}

		rpcClient := chain.New(endpoint)
		repo := campaign.NewRepository(rpcClient, programID, nil, log)
		return &App{
			Repository: repo,
			Actions: campaign.NewService(campaign.Dependencies{
				Client:     rpcClient,
				Repository: repo,
				Policy:     policy,
				Logger:     log,
			}),
			Session:  session,
			Profiles: profile.NewClient(cfg.ProfileEndpoint, nil),
		}, nil
	}
}
