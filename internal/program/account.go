package program

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// ErrDiscriminator means the account data does not belong to a Campaign.
var ErrDiscriminator = errors.New("account discriminator mismatch")

// CampaignAccount mirrors the on-chain Campaign layout.
type CampaignAccount struct {
	Name          string
	Description   string
	AmountDonated uint64
	Admin         solana.PublicKey
}

// EncodeCampaign serializes a Campaign account including its discriminator.
func EncodeCampaign(acc CampaignAccount) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(campaignDiscriminator[:])
	enc := bin.NewBorshEncoder(buf)
	if err := enc.Encode(acc.Name); err != nil {
		return nil, err
	}
	if err := enc.Encode(acc.Description); err != nil {
		return nil, err
	}
	if err := enc.Encode(acc.AmountDonated); err != nil {
		return nil, err
	}
	if _, err := buf.Write(acc.Admin[:]); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeCampaign parses raw account data. Trailing bytes (unused account
// space) are ignored.
func DecodeCampaign(data []byte) (CampaignAccount, error) {
	var acc CampaignAccount
	if len(data) < len(campaignDiscriminator) {
		return acc, fmt.Errorf("campaign account: %d bytes is too short", len(data))
	}
	if !bytes.Equal(data[:8], campaignDiscriminator[:]) {
		return acc, ErrDiscriminator
	}
	dec := bin.NewBorshDecoder(data[8:])
	if err := dec.Decode(&acc.Name); err != nil {
		return acc, fmt.Errorf("campaign name: %w", err)
	}
	if err := dec.Decode(&acc.Description); err != nil {
		return acc, fmt.Errorf("campaign description: %w", err)
	}
	if err := dec.Decode(&acc.AmountDonated); err != nil {
		return acc, fmt.Errorf("campaign amount: %w", err)
	}
	admin, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return acc, fmt.Errorf("campaign admin: %w", err)
	}
	acc.Admin = solana.PublicKeyFromBytes(admin)
	return acc, nil
}
