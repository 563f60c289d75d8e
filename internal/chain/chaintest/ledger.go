// Package chaintest provides an in-memory crowdfunding program that satisfies
// chain.Client for tests.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"

	"crowdfund/internal/chain"
	"crowdfund/internal/program"
)

// Blockhash is the only blockhash the ledger hands out and accepts.
var Blockhash = solana.Hash{7, 7, 7}

// Ledger simulates the RPC endpoint and the program it hosts.
type Ledger struct {
	programID solana.PublicKey

	mu        sync.Mutex
	campaigns map[solana.PublicKey]program.CampaignAccount
	raw       map[solana.PublicKey][]byte
	landed    map[solana.Signature]bool

	fetchErr  error
	submitErr error

	Fetches     int
	Submissions int
}

var _ chain.Client = (*Ledger)(nil)

// NewLedger creates an empty ledger for programID.
func NewLedger(programID solana.PublicKey) *Ledger {
	return &Ledger{
		programID: programID,
		campaigns: make(map[solana.PublicKey]program.CampaignAccount),
		raw:       make(map[solana.PublicKey][]byte),
		landed:    make(map[solana.Signature]bool),
	}
}

// Put stores a campaign account directly.
func (l *Ledger) Put(addr solana.PublicKey, acc program.CampaignAccount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.campaigns[addr] = acc
}

// PutRaw stores arbitrary account data, e.g. to provoke decode failures.
func (l *Ledger) PutRaw(addr solana.PublicKey, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.raw[addr] = data
}

// Campaign returns the stored campaign account.
func (l *Ledger) Campaign(addr solana.PublicKey) (program.CampaignAccount, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.campaigns[addr]
	return acc, ok
}

// FailFetch makes ProgramAccounts return err until cleared with nil.
func (l *Ledger) FailFetch(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetchErr = err
}

// FailSubmit makes Submit return err until cleared with nil.
func (l *Ledger) FailSubmit(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submitErr = err
}

// ProgramAccounts implements chain.Client.
func (l *Ledger) ProgramAccounts(_ context.Context, programID solana.PublicKey) ([]chain.KeyedAccount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Fetches++
	if l.fetchErr != nil {
		return nil, l.fetchErr
	}
	if !programID.Equals(l.programID) {
		return nil, nil
	}
	out := make([]chain.KeyedAccount, 0, len(l.campaigns)+len(l.raw))
	for addr, acc := range l.campaigns {
		data, err := program.EncodeCampaign(acc)
		if err != nil {
			return nil, err
		}
		out = append(out, chain.KeyedAccount{Address: addr, Data: data})
	}
	for addr, data := range l.raw {
		out = append(out, chain.KeyedAccount{Address: addr, Data: data})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address.String() < out[j].Address.String() })
	return out, nil
}

// LatestBlockhash implements chain.Client.
func (l *Ledger) LatestBlockhash(context.Context) (solana.Hash, error) {
	return Blockhash, nil
}

// Submit verifies signatures and applies the transaction atomically.
func (l *Ledger) Submit(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Submissions++
	if l.submitErr != nil {
		return solana.Signature{}, l.submitErr
	}
	if tx.Message.RecentBlockhash != Blockhash {
		return solana.Signature{}, errors.New("Transaction simulation failed: Blockhash not found")
	}
	if err := verifySignatures(tx); err != nil {
		return solana.Signature{}, err
	}

	staged := make(map[solana.PublicKey]program.CampaignAccount, len(l.campaigns))
	for k, v := range l.campaigns {
		staged[k] = v
	}
	for i, ci := range tx.Message.Instructions {
		programID := tx.Message.AccountKeys[ci.ProgramIDIndex]
		if !programID.Equals(l.programID) {
			return solana.Signature{}, fmt.Errorf("instruction %d: unexpected program %s", i, programID)
		}
		accounts := make([]solana.PublicKey, len(ci.Accounts))
		for j, idx := range ci.Accounts {
			accounts[j] = tx.Message.AccountKeys[idx]
		}
		if err := l.apply(staged, accounts, ci.Data); err != nil {
			return solana.Signature{}, fmt.Errorf("Transaction simulation failed: Error processing Instruction %d: %w", i, err)
		}
	}
	l.campaigns = staged
	sig := tx.Signatures[0]
	l.landed[sig] = true
	return sig, nil
}

// Confirm implements chain.Client.
func (l *Ledger) Confirm(ctx context.Context, sig solana.Signature) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.landed[sig] {
		return fmt.Errorf("signature %s not found", sig)
	}
	return nil
}

func (l *Ledger) apply(state map[solana.PublicKey]program.CampaignAccount, accounts []solana.PublicKey, data []byte) error {
	ix, err := program.DecodeInstruction(data)
	if err != nil {
		return err
	}
	if len(accounts) < 2 {
		return errors.New("not enough account keys")
	}
	campaign, user := accounts[0], accounts[1]
	switch ix.Kind {
	case program.KindCreate:
		want, _, err := program.CampaignAddress(l.programID, user)
		if err != nil {
			return err
		}
		if !want.Equals(campaign) {
			return errors.New("custom program error: 0x7d6")
		}
		if _, exists := state[campaign]; exists {
			return errors.New("custom program error: 0x0")
		}
		state[campaign] = program.CampaignAccount{Name: ix.Name, Description: ix.Description, Admin: user}
	case program.KindDonate:
		acc, ok := state[campaign]
		if !ok {
			return errors.New("custom program error: 0xbc4")
		}
		acc.AmountDonated += ix.Amount
		state[campaign] = acc
	case program.KindWithdraw:
		acc, ok := state[campaign]
		if !ok {
			return errors.New("custom program error: 0xbc4")
		}
		if !acc.Admin.Equals(user) {
			return fmt.Errorf("custom program error: %#x", program.ErrCodeUnauthorized)
		}
		if ix.Amount > acc.AmountDonated {
			return fmt.Errorf("custom program error: %#x", program.ErrCodeInsufficientFunds)
		}
		acc.AmountDonated -= ix.Amount
		state[campaign] = acc
	}
	return nil
}

func verifySignatures(tx *solana.Transaction) error {
	n := int(tx.Message.Header.NumRequiredSignatures)
	if n == 0 || len(tx.Signatures) < n {
		return errors.New("missing required signatures")
	}
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if !tx.Signatures[i].Verify(tx.Message.AccountKeys[i], msg) {
			return fmt.Errorf("invalid signature for %s", tx.Message.AccountKeys[i])
		}
	}
	return nil
}
