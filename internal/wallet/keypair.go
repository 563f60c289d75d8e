package wallet

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// KeypairProvider connects a wallet backed by a local private key, such as
// a solana-keygen JSON file.
type KeypairProvider struct {
	key     solana.PrivateKey
	profile *Profile
}

// NewKeypairProvider wraps an in-memory key.
func NewKeypairProvider(key solana.PrivateKey, profile *Profile) *KeypairProvider {
	return &KeypairProvider{key: key, profile: profile}
}

// LoadKeypairProvider reads a solana-keygen keypair file.
func LoadKeypairProvider(path string, profile *Profile) (*KeypairProvider, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return NewKeypairProvider(key, profile), nil
}

// Connect implements Provider.
func (p *KeypairProvider) Connect(context.Context) (*Session, error) {
	pub := p.key.PublicKey()
	return &Session{
		PublicKey: pub,
		Sign:      SignWith(p.key),
		Profile:   p.profile,
	}, nil
}

// SignWith returns a SignFunc that signs with key. Transactions requiring
// other signers fail.
func SignWith(key solana.PrivateKey) SignFunc {
	pub := key.PublicKey()
	return func(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, err := tx.Sign(func(k solana.PublicKey) *solana.PrivateKey {
			if k.Equals(pub) {
				return &key
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("sign transaction: %w", err)
		}
		return tx, nil
	}
}
