// Package program encodes and decodes the crowdfunding program's accounts and
// instructions.
package program

import (
	"crypto/sha256"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// DefaultProgramID is the devnet deployment of the crowdfunding program.
const DefaultProgramID = "3cHTr1mwTDEMNk5UfpiL7ACsPfJVtRGhMoM8qDEm8PTb"

// CampaignSeed prefixes every campaign PDA.
const CampaignSeed = "CAMPAIGN_DEMO"

// Field limits enforced by the program's account space.
const (
	MaxNameLen        = 64
	MaxDescriptionLen = 256
)

// Anchor custom error codes raised by the program.
const (
	ErrCodeUnauthorized      = 6000
	ErrCodeInsufficientFunds = 6001
)

// Network names a Solana cluster.
type Network string

const (
	Devnet  Network = "devnet"
	Testnet Network = "testnet"
	Mainnet Network = "mainnet-beta"
)

// RPCURL returns the public RPC endpoint of the cluster.
func (n Network) RPCURL() (string, error) {
	switch n {
	case Devnet:
		return "https://api.devnet.solana.com", nil
	case Testnet:
		return "https://api.testnet.solana.com", nil
	case Mainnet:
		return "https://api.mainnet-beta.solana.com", nil
	default:
		return "", fmt.Errorf("unknown network %q", n)
	}
}

// CampaignAddress derives the campaign account owned by admin.
func CampaignAddress(programID, admin solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(CampaignSeed), admin.Bytes()}, programID)
}

type discriminator [8]byte

func sighash(namespace, name string) discriminator {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var d discriminator
	copy(d[:], sum[:8])
	return d
}

var (
	campaignDiscriminator = sighash("account", "Campaign")
	createDiscriminator   = sighash("global", "create")
	donateDiscriminator   = sighash("global", "donate")
	withdrawDiscriminator = sighash("global", "withdraw")
)
