// Package config holds settings shared by every binary and the env loading
// helper each binary's config uses.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"

	"crowdfund/internal/domain/campaign"
	"crowdfund/internal/program"
	"crowdfund/internal/sol"
	"crowdfund/internal/wallet"
)

// ParseEnv loads an optional .env file and then fills target from the
// environment. Variables already set win over the file.
func ParseEnv(target any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Chain configures the RPC connection, program and action policy.
type Chain struct {
	AppEnv           string `env:"APP_ENV" envDefault:"production"`
	Network          string `env:"SOLANA_NETWORK" envDefault:"devnet"`
	RPCURL           string `env:"SOLANA_RPC_URL"`
	ProgramID        string `env:"PROGRAM_ID" envDefault:"3cHTr1mwTDEMNk5UfpiL7ACsPfJVtRGhMoM8qDEm8PTb"`
	MinDonationSOL   string `env:"MIN_DONATION_SOL" envDefault:"0.002"`
	MinWithdrawalSOL string `env:"MIN_WITHDRAWAL_SOL" envDefault:"0.002"`
	CheckBalance     bool   `env:"CHECK_WITHDRAW_BALANCE" envDefault:"false"`
}

// Endpoint returns RPCURL, or the public endpoint of Network when unset.
func (c Chain) Endpoint() (string, error) {
	if c.RPCURL != "" {
		return c.RPCURL, nil
	}
	return program.Network(c.Network).RPCURL()
}

// Program parses ProgramID.
func (c Chain) Program() (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(c.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("PROGRAM_ID: %w", err)
	}
	return pk, nil
}

// Policy converts the configured SOL thresholds.
func (c Chain) Policy() (campaign.Policy, error) {
	minDonation, err := sol.ParseSOL(c.MinDonationSOL)
	if err != nil {
		return campaign.Policy{}, fmt.Errorf("MIN_DONATION_SOL: %w", err)
	}
	minWithdrawal, err := sol.ParseSOL(c.MinWithdrawalSOL)
	if err != nil {
		return campaign.Policy{}, fmt.Errorf("MIN_WITHDRAWAL_SOL: %w", err)
	}
	return campaign.Policy{
		MinDonation:   minDonation,
		MinWithdrawal: minWithdrawal,
		CheckBalance:  c.CheckBalance,
	}, nil
}

// Wallet configures the keypair-backed wallet provider.
type Wallet struct {
	KeypairPath string `env:"WALLET_KEYPAIR" envDefault:"~/.config/solana/id.json"`
	Username    string `env:"WALLET_USERNAME"`
	Avatar      string `env:"WALLET_AVATAR"`
}

// Profile returns the wallet's profile metadata, nil without a username.
func (w Wallet) Profile() *wallet.Profile {
	if w.Username == "" {
		return nil
	}
	return &wallet.Profile{Username: w.Username, Avatar: w.Avatar}
}

// Path returns KeypairPath with a leading ~ expanded to the home directory.
func (w Wallet) Path() string {
	if !strings.HasPrefix(w.KeypairPath, "~/") {
		return w.KeypairPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return w.KeypairPath
	}
	return filepath.Join(home, w.KeypairPath[2:])
}
