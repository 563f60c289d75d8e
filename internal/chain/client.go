// Package chain adapts a Solana JSON-RPC endpoint to the operations the
// crowdfunding client needs.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"crowdfund/internal/observability/metrics"
)

// DefaultConfirmPollInterval is how often Confirm polls signature statuses.
const DefaultConfirmPollInterval = 500 * time.Millisecond

// KeyedAccount is a program-owned account and its raw data.
type KeyedAccount struct {
	Address solana.PublicKey
	Data    []byte
}

// Client is the RPC surface used by the campaign repository and actions.
type Client interface {
	ProgramAccounts(ctx context.Context, program solana.PublicKey) ([]KeyedAccount, error)
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	Confirm(ctx context.Context, sig solana.Signature) error
}

// TxError is a transaction that landed but failed during execution.
type TxError struct {
	Signature solana.Signature
	// Code is the program's custom error code, or -1 when the failure was not
	// a custom program error.
	Code   int
	Detail string
}

func (e *TxError) Error() string {
	if e.Code >= 0 {
		return fmt.Sprintf("transaction %s failed: custom program error %d", e.Signature, e.Code)
	}
	return fmt.Sprintf("transaction %s failed: %s", e.Signature, e.Detail)
}

// RPC implements Client on top of solana-go's JSON-RPC client.
type RPC struct {
	rpc          *rpc.Client
	commitment   rpc.CommitmentType
	pollInterval time.Duration
}

// Option customizes an RPC client.
type Option func(*RPC)

// WithCommitment overrides the commitment used for reads and blockhashes.
func WithCommitment(c rpc.CommitmentType) Option {
	return func(r *RPC) { r.commitment = c }
}

// WithPollInterval overrides the confirmation poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(r *RPC) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// New dials nothing; the endpoint is contacted lazily on first call.
func New(endpoint string, opts ...Option) *RPC {
	r := &RPC{
		rpc:          rpc.New(endpoint),
		commitment:   rpc.CommitmentConfirmed,
		pollInterval: DefaultConfirmPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ProgramAccounts returns every account owned by program.
func (r *RPC) ProgramAccounts(ctx context.Context, program solana.PublicKey) (accounts []KeyedAccount, err error) {
	start := time.Now()
	defer func() { metrics.ObserveRPCOperation("get_program_accounts", err, time.Since(start)) }()

	res, err := r.rpc.GetProgramAccountsWithOpts(ctx, program, &rpc.GetProgramAccountsOpts{
		Commitment: r.commitment,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		return nil, err
	}
	accounts = make([]KeyedAccount, 0, len(res))
	for _, acc := range res {
		if acc == nil {
			continue
		}
		// accounts without data are kept so decoding rejects them
		keyed := KeyedAccount{Address: acc.Pubkey}
		if acc.Account != nil && acc.Account.Data != nil {
			keyed.Data = acc.Account.Data.GetBinary()
		}
		accounts = append(accounts, keyed)
	}
	return accounts, nil
}

// LatestBlockhash fetches a recent blockhash for transaction building.
func (r *RPC) LatestBlockhash(ctx context.Context) (hash solana.Hash, err error) {
	start := time.Now()
	defer func() { metrics.ObserveRPCOperation("get_latest_blockhash", err, time.Since(start)) }()

	res, err := r.rpc.GetLatestBlockhash(ctx, r.commitment)
	if err != nil {
		return solana.Hash{}, err
	}
	if res == nil || res.Value == nil {
		return solana.Hash{}, errors.New("empty blockhash response")
	}
	return res.Value.Blockhash, nil
}

// Submit serializes a signed transaction and sends it.
func (r *RPC) Submit(ctx context.Context, tx *solana.Transaction) (sig solana.Signature, err error) {
	start := time.Now()
	defer func() { metrics.ObserveRPCOperation("send_raw_transaction", err, time.Since(start)) }()

	raw, err := tx.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("serialize transaction: %w", err)
	}
	return r.rpc.SendRawTransaction(ctx, raw)
}

// Confirm blocks until sig reaches confirmed commitment, fails on chain, or
// ctx is done.
func (r *RPC) Confirm(ctx context.Context, sig solana.Signature) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveRPCOperation("confirm_transaction", err, time.Since(start)) }()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		res, err := r.rpc.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			return err
		}
		if res != nil && len(res.Value) > 0 && res.Value[0] != nil {
			status := res.Value[0]
			if status.Err != nil {
				return newTxError(sig, status.Err)
			}
			switch status.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newTxError extracts the custom program error code from a status error of
// the form {"InstructionError":[0,{"Custom":6000}]}.
func newTxError(sig solana.Signature, raw interface{}) *TxError {
	txErr := &TxError{Signature: sig, Code: -1, Detail: fmt.Sprint(raw)}
	b, err := json.Marshal(raw)
	if err != nil {
		return txErr
	}
	var parsed struct {
		InstructionError []json.RawMessage `json:"InstructionError"`
	}
	if json.Unmarshal(b, &parsed) != nil || len(parsed.InstructionError) != 2 {
		return txErr
	}
	var custom struct {
		Custom *int `json:"Custom"`
	}
	if json.Unmarshal(parsed.InstructionError[1], &custom) == nil && custom.Custom != nil {
		txErr.Code = *custom.Custom
	}
	txErr.Detail = string(b)
	return txErr
}
