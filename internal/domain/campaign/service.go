package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crowdfund/internal/chain"
	"crowdfund/internal/observability/metrics"
	"crowdfund/internal/program"
	"crowdfund/internal/sol"
	"crowdfund/internal/wallet"
)

// Kind names a mutating action.
type Kind string

const (
	KindCreate   Kind = "create"
	KindDonate   Kind = "donate"
	KindWithdraw Kind = "withdraw"
)

// State is the position of an action in Idle → Validating → Signing →
// Submitting → Confirmed | Failed.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateSigning    State = "signing"
	StateSubmitting State = "submitting"
	StateConfirmed  State = "confirmed"
	StateFailed     State = "failed"
)

// DefaultMinimum is the default donation and withdrawal threshold, 0.002 SOL.
const DefaultMinimum = 2 * sol.LamportsPerSOL / 1000

// Policy holds the client-side thresholds.
type Policy struct {
	MinDonation   uint64
	MinWithdrawal uint64
	// CheckBalance rejects withdrawals above the cached balance before
	// submitting. The program enforces this regardless.
	CheckBalance bool
}

// DefaultPolicy returns the default thresholds.
func DefaultPolicy() Policy {
	return Policy{MinDonation: DefaultMinimum, MinWithdrawal: DefaultMinimum}
}

// PendingAction is a single submitted form. It is discarded once the action
// finishes, whatever the outcome.
type PendingAction struct {
	ID          string
	Kind        Kind
	Campaign    solana.PublicKey
	Amount      uint64
	Name        string
	Description string
}

// Outcome reports where an action ended.
type Outcome struct {
	Action    PendingAction
	State     State
	Signature solana.Signature
	Err       error
}

// Message is the single line shown to the user for this outcome.
func (o *Outcome) Message() string {
	if o.Err != nil {
		return fmt.Sprintf("Error %s: %v", verb(o.Action.Kind), o.Err)
	}
	switch o.Action.Kind {
	case KindCreate:
		return "Created a new campaign w/ address: " + o.Action.Campaign.String()
	case KindDonate:
		return fmt.Sprintf("Donated %s to: %s", sol.FormatAmount(o.Action.Amount), o.Action.Campaign)
	default:
		return fmt.Sprintf("Withdrew %s from: %s", sol.FormatAmount(o.Action.Amount), o.Action.Campaign)
	}
}

func verb(k Kind) string {
	switch k {
	case KindCreate:
		return "creating campaign"
	case KindDonate:
		return "donating"
	default:
		return "withdrawing"
	}
}

// Dependencies wires a Service.
type Dependencies struct {
	Client     chain.Client
	Repository *Repository
	Policy     Policy
	Events     EventPublisher
	Logger     zerolog.Logger
}

// Service builds, signs and submits campaign transactions, then reloads the
// repository. Calls are independent: concurrent actions are neither
// serialized nor de-duplicated, and nothing is retried.
type Service struct {
	client    chain.Client
	repo      *Repository
	programID solana.PublicKey
	policy    Policy
	events    EventPublisher
	log       zerolog.Logger
}

// NewService wires dependencies.
func NewService(deps Dependencies) *Service {
	events := deps.Events
	if events == nil {
		events = NopPublisher{}
	}
	return &Service{
		client:    deps.Client,
		repo:      deps.Repository,
		programID: deps.Repository.ProgramID(),
		policy:    deps.Policy,
		events:    events,
		log:       deps.Logger.With().Str("component", "campaign_actions").Logger(),
	}
}

// Policy returns the thresholds in force.
func (s *Service) Policy() Policy { return s.policy }

// Create opens the session wallet's campaign. Each wallet has exactly one
// campaign address, so a second create is rejected by the program.
func (s *Service) Create(ctx context.Context, session *wallet.Session, name, description string) (*Outcome, error) {
	name, description = strings.TrimSpace(name), strings.TrimSpace(description)
	action := PendingAction{Kind: KindCreate, Name: name, Description: description}
	return s.run(ctx, session, &action, func() error {
		switch {
		case name == "":
			return fmt.Errorf("%w: name is required", ErrValidation)
		case description == "":
			return fmt.Errorf("%w: description is required", ErrValidation)
		case len(name) > program.MaxNameLen:
			return fmt.Errorf("%w: name exceeds %d bytes", ErrValidation, program.MaxNameLen)
		case len(description) > program.MaxDescriptionLen:
			return fmt.Errorf("%w: description exceeds %d bytes", ErrValidation, program.MaxDescriptionLen)
		}
		addr, _, err := program.CampaignAddress(s.programID, session.PublicKey)
		if err != nil {
			return fmt.Errorf("derive campaign address: %w", err)
		}
		action.Campaign = addr
		return nil
	}, func() (solana.Instruction, error) {
		return program.NewCreateInstruction(s.programID, action.Campaign, session.PublicKey, name, description)
	})
}

// Donate transfers amount lamports from the session wallet to c.
func (s *Service) Donate(ctx context.Context, session *wallet.Session, c Campaign, amount uint64) (*Outcome, error) {
	action := PendingAction{Kind: KindDonate, Campaign: c.Address, Amount: amount}
	return s.run(ctx, session, &action, func() error {
		if c.Address.IsZero() {
			return fmt.Errorf("%w: campaign is required", ErrValidation)
		}
		if amount < s.policy.MinDonation {
			return fmt.Errorf("%w: minimum donation is %s", ErrValidation, sol.FormatAmount(s.policy.MinDonation))
		}
		return nil
	}, func() (solana.Instruction, error) {
		return program.NewDonateInstruction(s.programID, c.Address, session.PublicKey, amount)
	})
}

// Withdraw moves amount lamports from c to its admin. Only the admin may
// withdraw.
func (s *Service) Withdraw(ctx context.Context, session *wallet.Session, c Campaign, amount uint64) (*Outcome, error) {
	action := PendingAction{Kind: KindWithdraw, Campaign: c.Address, Amount: amount}
	return s.run(ctx, session, &action, func() error {
		if c.Address.IsZero() {
			return fmt.Errorf("%w: campaign is required", ErrValidation)
		}
		if !c.Admin.Equals(session.PublicKey) {
			return fmt.Errorf("%w: only the campaign admin can withdraw", ErrAuthorization)
		}
		if amount < s.policy.MinWithdrawal {
			return fmt.Errorf("%w: minimum withdrawal is %s", ErrValidation, sol.FormatAmount(s.policy.MinWithdrawal))
		}
		if s.policy.CheckBalance && amount > c.AmountDonated {
			return fmt.Errorf("%w: campaign balance is %s", ErrValidation, sol.FormatAmount(c.AmountDonated))
		}
		return nil
	}, func() (solana.Instruction, error) {
		return program.NewWithdrawInstruction(s.programID, c.Address, session.PublicKey, amount)
	})
}

func (s *Service) run(ctx context.Context, session *wallet.Session, action *PendingAction, validate func() error, build func() (solana.Instruction, error)) (*Outcome, error) {
	start := time.Now()
	action.ID = uuid.NewString()
	out := &Outcome{Action: *action, State: StateIdle}

	fail := func(err error) (*Outcome, error) {
		out.Action = *action
		out.State = StateFailed
		out.Err = err
		s.finish(ctx, session, out, start)
		return out, err
	}

	out.State = StateValidating
	if err := session.Validate(); err != nil {
		return fail(err)
	}
	if err := validate(); err != nil {
		return fail(err)
	}

	ix, err := build()
	if err != nil {
		return fail(fmt.Errorf("build instruction: %w", err))
	}
	blockhash, err := s.client.LatestBlockhash(ctx)
	if err != nil {
		return fail(fmt.Errorf("%w: latest blockhash: %w", ErrSubmission, err))
	}
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, blockhash, solana.TransactionPayer(session.PublicKey))
	if err != nil {
		return fail(fmt.Errorf("build transaction: %w", err))
	}

	out.State = StateSigning
	signed, err := session.Sign(ctx, tx)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrSubmission, err))
	}

	out.State = StateSubmitting
	sig, err := s.client.Submit(ctx, signed)
	if err != nil {
		return fail(classify(err))
	}
	out.Signature = sig
	if err := s.client.Confirm(ctx, sig); err != nil {
		return fail(classify(err))
	}

	out.Action = *action
	out.State = StateConfirmed
	if _, err := s.repo.Reload(ctx); err != nil {
		s.log.Warn().Err(err).Str("action_id", action.ID).Msg("reload after action failed; list is stale until next reload")
	}
	s.finish(ctx, session, out, start)
	return out, nil
}

// classify maps a submission failure onto the error taxonomy.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	if code, ok := chain.CustomErrorCode(err); ok && code == program.ErrCodeUnauthorized {
		return fmt.Errorf("%w: %w", ErrAuthorization, err)
	}
	return fmt.Errorf("%w: %w", ErrSubmission, err)
}

func (s *Service) finish(ctx context.Context, session *wallet.Session, out *Outcome, start time.Time) {
	elapsed := time.Since(start)
	metrics.ObserveAction(string(out.Action.Kind), string(out.State), elapsed)

	var walletAddr string
	if session != nil {
		walletAddr = session.PublicKey.String()
	}
	event := ActionEvent{
		ID:        out.Action.ID,
		Kind:      out.Action.Kind,
		Wallet:    walletAddr,
		Campaign:  out.Action.Campaign.String(),
		Amount:    out.Action.Amount,
		State:     out.State,
		Timestamp: time.Now().UTC(),
	}
	if out.Signature != (solana.Signature{}) {
		event.Signature = out.Signature.String()
	}

	logEvent := s.log.Info()
	if out.Err != nil {
		event.Error = out.Err.Error()
		logEvent = s.log.Error().Err(out.Err)
	}
	logEvent.
		Str("action_id", event.ID).
		Str("kind", string(event.Kind)).
		Str("wallet", event.Wallet).
		Str("campaign", event.Campaign).
		Uint64("amount", event.Amount).
		Str("state", string(event.State)).
		Dur("elapsed", elapsed).
		Msg(out.Message())

	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("action_id", event.ID).Msg("publish action event")
	}
}
