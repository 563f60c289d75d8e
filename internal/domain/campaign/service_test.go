package campaign

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdfund/internal/chain/chaintest"
	"crowdfund/internal/program"
	"crowdfund/internal/sol"
	"crowdfund/internal/wallet"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []ActionEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e ActionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type fixture struct {
	ledger *chaintest.Ledger
	repo   *Repository
	svc    *Service
	events *recordingPublisher
}

func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()
	programID := solana.MustPublicKeyFromBase58(program.DefaultProgramID)
	ledger := chaintest.NewLedger(programID)
	repo := NewRepository(ledger, programID, nil, zerolog.Nop())
	events := &recordingPublisher{}
	svc := NewService(Dependencies{
		Client:     ledger,
		Repository: repo,
		Policy:     policy,
		Events:     events,
		Logger:     zerolog.Nop(),
	})
	return &fixture{ledger: ledger, repo: repo, svc: svc, events: events}
}

func newSession(t *testing.T) *wallet.Session {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	s, err := wallet.NewKeypairProvider(key, nil).Connect(context.Background())
	require.NoError(t, err)
	return s
}

func mustSOL(t *testing.T, s string) uint64 {
	t.Helper()
	v, err := sol.ParseSOL(s)
	require.NoError(t, err)
	return v
}

func (f *fixture) create(t *testing.T, s *wallet.Session) Campaign {
	t.Helper()
	out, err := f.svc.Create(context.Background(), s, "Campaign A", "desc")
	require.NoError(t, err)
	c, err := f.repo.Find(context.Background(), out.Action.Campaign)
	require.NoError(t, err)
	return c
}

func TestCreateCampaign(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	w := newSession(t)

	out, err := f.svc.Create(context.Background(), w, "Campaign A", "desc")
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, out.State)
	assert.NotEqual(t, solana.Signature{}, out.Signature)

	list := f.repo.Snapshot(context.Background())
	require.Len(t, list, 1)
	assert.Equal(t, w.PublicKey, list[0].Admin)
	assert.Equal(t, "Campaign A", list[0].Name)
	assert.Equal(t, "desc", list[0].Description)
	assert.Zero(t, list[0].AmountDonated)

	want, _, err := program.CampaignAddress(f.repo.ProgramID(), w.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, want, list[0].Address)
	assert.Contains(t, out.Message(), want.String())

	require.Len(t, f.events.events, 1)
	assert.Equal(t, StateConfirmed, f.events.events[0].State)
	assert.Equal(t, KindCreate, f.events.events[0].Kind)
}

func TestCreateTwiceFailsOnChain(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	w := newSession(t)
	f.create(t, w)

	out, err := f.svc.Create(context.Background(), w, "Campaign B", "other")
	assert.ErrorIs(t, err, ErrSubmission)
	assert.Equal(t, StateFailed, out.State)
	assert.Len(t, f.repo.Snapshot(context.Background()), 1)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	w := newSession(t)

	cases := []struct{ name, desc string }{
		{"", "desc"},
		{"name", "   "},
		{string(make([]byte, program.MaxNameLen+1)), "desc"},
	}
	for _, tc := range cases {
		out, err := f.svc.Create(context.Background(), w, tc.name, tc.desc)
		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, StateFailed, out.State)
	}
	assert.Zero(t, f.ledger.Submissions)
}

func TestActionsRequireSession(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	_, err := f.svc.Create(context.Background(), nil, "Campaign A", "desc")
	assert.ErrorIs(t, err, wallet.ErrNoSession)
	_, err = f.svc.Donate(context.Background(), &wallet.Session{}, Campaign{Address: solana.NewWallet().PublicKey()}, DefaultMinimum)
	assert.ErrorIs(t, err, wallet.ErrNoSession)
	assert.Zero(t, f.ledger.Submissions)
}

func TestDonateThenReload(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	admin := newSession(t)
	donor := newSession(t)
	c := f.create(t, admin)

	out, err := f.svc.Donate(context.Background(), donor, c, mustSOL(t, "0.02"))
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, out.State)

	got, err := f.repo.Find(context.Background(), c.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(20_000_000), got.AmountDonated)
	assert.Equal(t, "Donated 0.02 SOL to: "+c.Address.String(), out.Message())
}

func TestDonateBelowMinimumMakesNoNetworkCall(t *testing.T) {
	f := newFixture(t, Policy{MinDonation: mustSOL(t, "0.02"), MinWithdrawal: DefaultMinimum})
	c := f.create(t, newSession(t))
	submissions := f.ledger.Submissions

	out, err := f.svc.Donate(context.Background(), newSession(t), c, mustSOL(t, "0.019"))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, submissions, f.ledger.Submissions)
}

func TestWithdrawByNonAdmin(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	admin := newSession(t)
	c := f.create(t, admin)
	_, err := f.svc.Donate(context.Background(), newSession(t), c, mustSOL(t, "0.02"))
	require.NoError(t, err)
	c, err = f.repo.Find(context.Background(), c.Address)
	require.NoError(t, err)

	submissions := f.ledger.Submissions
	out, err := f.svc.Withdraw(context.Background(), newSession(t), c, mustSOL(t, "0.01"))
	assert.ErrorIs(t, err, ErrAuthorization)
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, submissions, f.ledger.Submissions)

	cached, err := f.repo.Find(context.Background(), c.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(20_000_000), cached.AmountDonated)
}

func TestWithdrawUnauthorizedOnChainMapsToAuthorization(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	admin := newSession(t)
	c := f.create(t, admin)
	intruder := newSession(t)

	// a stale cached admin lets the request through to the program
	stale := c
	stale.Admin = intruder.PublicKey
	_, err := f.svc.Withdraw(context.Background(), intruder, stale, DefaultMinimum)
	assert.ErrorIs(t, err, ErrAuthorization)
	assert.NotErrorIs(t, err, ErrSubmission)
}

func TestWithdrawMoreThanBalanceFailsAtSubmission(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	admin := newSession(t)
	c := f.create(t, admin)
	_, err := f.svc.Donate(context.Background(), newSession(t), c, mustSOL(t, "0.02"))
	require.NoError(t, err)
	c, err = f.repo.Find(context.Background(), c.Address)
	require.NoError(t, err)

	out, err := f.svc.Withdraw(context.Background(), admin, c, mustSOL(t, "0.5"))
	assert.ErrorIs(t, err, ErrSubmission)
	assert.Equal(t, StateFailed, out.State)

	cached, err := f.repo.Find(context.Background(), c.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(20_000_000), cached.AmountDonated)
	onChain, _ := f.ledger.Campaign(c.Address)
	assert.Equal(t, uint64(20_000_000), onChain.AmountDonated)
}

func TestWithdrawBalancePreCheck(t *testing.T) {
	policy := DefaultPolicy()
	policy.CheckBalance = true
	f := newFixture(t, policy)
	admin := newSession(t)
	c := f.create(t, admin)
	submissions := f.ledger.Submissions

	_, err := f.svc.Withdraw(context.Background(), admin, c, mustSOL(t, "0.5"))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, submissions, f.ledger.Submissions)
}

func TestWithdrawBelowMinimum(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	admin := newSession(t)
	c := f.create(t, admin)
	_, err := f.svc.Withdraw(context.Background(), admin, c, DefaultMinimum-1)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorContains(t, err, "minimum withdrawal is 0.002 SOL")
}

func TestDonateBelowMinimumNamesThreshold(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	c := f.create(t, newSession(t))
	out, err := f.svc.Donate(context.Background(), newSession(t), c, 1)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorContains(t, err, "minimum donation is 0.002 SOL")
	assert.Contains(t, out.Message(), "0.002 SOL")
}

func TestDonateAtMinimumReportsExactAmount(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	c := f.create(t, newSession(t))
	out, err := f.svc.Donate(context.Background(), newSession(t), c, DefaultMinimum)
	require.NoError(t, err)
	assert.Equal(t, "Donated 0.002 SOL to: "+c.Address.String(), out.Message())
}

func TestWithdrawByNonAdminBelowMinimumIsUnauthorized(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	c := f.create(t, newSession(t))
	submissions := f.ledger.Submissions

	_, err := f.svc.Withdraw(context.Background(), newSession(t), c, 1)
	assert.ErrorIs(t, err, ErrAuthorization)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, submissions, f.ledger.Submissions)
}

func TestDonateWithdrawSequenceKeepsBalanceNonNegative(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	admin := newSession(t)
	c := f.create(t, admin)
	donor := newSession(t)

	steps := []struct {
		withdraw bool
		amount   string
	}{
		{false, "0.02"}, {true, "0.01"}, {true, "0.05"}, {false, "0.003"}, {true, "0.013"}, {true, "0.002"},
	}
	for _, step := range steps {
		if step.withdraw {
			_, _ = f.svc.Withdraw(context.Background(), admin, c, mustSOL(t, step.amount))
		} else {
			_, _ = f.svc.Donate(context.Background(), donor, c, mustSOL(t, step.amount))
		}
		list, err := f.repo.List(context.Background())
		require.NoError(t, err)
		for _, got := range list {
			assert.GreaterOrEqual(t, got.AmountDonated, uint64(0))
		}
	}
	got, err := f.repo.Find(context.Background(), c.Address)
	require.NoError(t, err)
	assert.Zero(t, got.AmountDonated)
}

func TestSubmissionErrorKeepsCache(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	c := f.create(t, newSession(t))
	f.ledger.FailSubmit(errors.New("Blockhash not found"))

	out, err := f.svc.Donate(context.Background(), newSession(t), c, DefaultMinimum)
	assert.ErrorIs(t, err, ErrSubmission)
	assert.Contains(t, out.Message(), "Error donating")

	cached, err := f.repo.Find(context.Background(), c.Address)
	require.NoError(t, err)
	assert.Zero(t, cached.AmountDonated)

	last := f.events.events[len(f.events.events)-1]
	assert.Equal(t, StateFailed, last.State)
	assert.Contains(t, last.Error, "Blockhash not found")
}

func TestPublishFailureDoesNotFailAction(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	f.events.err = errors.New("kafka unavailable")
	_, err := f.svc.Create(context.Background(), newSession(t), "Campaign A", "desc")
	assert.NoError(t, err)
}

func TestConcurrentDonationsAreIndependent(t *testing.T) {
	f := newFixture(t, DefaultPolicy())
	c := f.create(t, newSession(t))

	donors := make([]*wallet.Session, 5)
	for i := range donors {
		donors[i] = newSession(t)
	}
	var wg sync.WaitGroup
	for _, donor := range donors {
		wg.Add(1)
		go func(s *wallet.Session) {
			defer wg.Done()
			_, err := f.svc.Donate(context.Background(), s, c, DefaultMinimum)
			assert.NoError(t, err)
		}(donor)
	}
	wg.Wait()

	list, err := f.repo.Reload(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 5*DefaultMinimum, list[0].AmountDonated)
}
