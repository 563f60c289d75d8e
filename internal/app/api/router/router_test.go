package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdfund/internal/chain/chaintest"
	"crowdfund/internal/db"
	"crowdfund/internal/domain/campaign"
	"crowdfund/internal/profile"
	"crowdfund/internal/program"
	"crowdfund/internal/wallet"
)

// freshKeys hands out a new wallet on every connect.
type freshKeys struct{}

func (freshKeys) Connect(ctx context.Context) (*wallet.Session, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, err
	}
	return wallet.NewKeypairProvider(key, &wallet.Profile{Username: "alice"}).Connect(ctx)
}

type fakeProfiles struct {
	data *profile.UserData
	err  error
}

func (f fakeProfiles) GetUserData(context.Context, string) (*profile.UserData, error) {
	return f.data, f.err
}

type fakeJournal struct {
	rows []db.ActionLog
}

func (f fakeJournal) ListActionLogs(_ context.Context, wallet string, _ int) ([]db.ActionLog, error) {
	var out []db.ActionLog
	for _, r := range f.rows {
		if r.Wallet == wallet {
			out = append(out, r)
		}
	}
	return out, nil
}

type testAPI struct {
	engine *gin.Engine
	ledger *chaintest.Ledger
}

func newTestAPI(t *testing.T, profiles ProfileFetcher, journal ActionLister) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	programID := solana.MustPublicKeyFromBase58(program.DefaultProgramID)
	ledger := chaintest.NewLedger(programID)
	repo := campaign.NewRepository(ledger, programID, nil, zerolog.Nop())
	svc := campaign.NewService(campaign.Dependencies{
		Client:     ledger,
		Repository: repo,
		Policy:     campaign.DefaultPolicy(),
		Logger:     zerolog.Nop(),
	})
	engine := New(Dependencies{
		Repository: repo,
		Actions:    svc,
		Sessions:   wallet.NewRegistry(freshKeys{}),
		Profiles:   profiles,
		Journal:    journal,
		Logger:     zerolog.Nop(),
	})
	return &testAPI{engine: engine, ledger: ledger}
}

func (a *testAPI) do(t *testing.T, method, path, session string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) connect(t *testing.T) sessionResponse {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/sessions", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCampaignFlow(t *testing.T) {
	api := newTestAPI(t, fakeProfiles{}, nil)
	admin := api.connect(t)
	donor := api.connect(t)
	assert.True(t, admin.CampaignsLoaded)
	assert.Equal(t, "alice", admin.Profile.Username)

	rec := api.do(t, http.MethodPost, "/campaigns", admin.SessionID, createCampaignRequest{Name: "Campaign A", Description: "desc"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[actionResponse](t, rec)
	assert.Equal(t, "confirmed", created.State)
	assert.Contains(t, created.Message, created.Campaign)

	rec = api.do(t, http.MethodPost, "/campaigns/"+created.Campaign+"/donate", donor.SessionID, amountRequest{AmountSOL: "0.02"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/campaigns?tab=mine", admin.SessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[struct{ Campaigns []campaignCard }](t, rec)
	require.Len(t, mine.Campaigns, 1)
	assert.Equal(t, uint64(20_000_000), mine.Campaigns[0].AmountDonated)
	assert.Equal(t, "0.02 SOL", mine.Campaigns[0].Balance)
	assert.True(t, mine.Campaigns[0].CanWithdraw)

	rec = api.do(t, http.MethodGet, "/campaigns?tab=mine", donor.SessionID, nil)
	assert.Empty(t, decode[struct{ Campaigns []campaignCard }](t, rec).Campaigns)
	rec = api.do(t, http.MethodGet, "/campaigns?tab=others", donor.SessionID, nil)
	others := decode[struct{ Campaigns []campaignCard }](t, rec)
	require.Len(t, others.Campaigns, 1)
	assert.False(t, others.Campaigns[0].CanWithdraw)

	rec = api.do(t, http.MethodPost, "/campaigns/"+created.Campaign+"/withdraw", donor.SessionID, amountRequest{AmountSOL: "0.01"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, "/campaigns/"+created.Campaign+"/withdraw", admin.SessionID, amountRequest{AmountSOL: "0.5"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "failed", decode[actionResponse](t, rec).State)

	rec = api.do(t, http.MethodPost, "/campaigns/"+created.Campaign+"/withdraw", admin.SessionID, amountRequest{AmountSOL: "0.02"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestMutationsRequireSession(t *testing.T) {
	api := newTestAPI(t, fakeProfiles{}, nil)
	rec := api.do(t, http.MethodPost, "/campaigns", "", createCampaignRequest{Name: "a", Description: "b"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	s := api.connect(t)
	rec = api.do(t, http.MethodDelete, "/sessions/"+s.SessionID, "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodPost, "/campaigns", s.SessionID, createCampaignRequest{Name: "a", Description: "b"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodGet, "/campaigns?tab=mine", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = api.do(t, http.MethodGet, "/campaigns", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDonateValidation(t *testing.T) {
	api := newTestAPI(t, fakeProfiles{}, nil)
	admin := api.connect(t)
	rec := api.do(t, http.MethodPost, "/campaigns", admin.SessionID, createCampaignRequest{Name: "Campaign A", Description: "desc"})
	require.Equal(t, http.StatusCreated, rec.Code)
	addr := decode[actionResponse](t, rec).Campaign
	submissions := api.ledger.Submissions

	rec = api.do(t, http.MethodPost, "/campaigns/"+addr+"/donate", admin.SessionID, amountRequest{AmountSOL: "0.001"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(t, http.MethodPost, "/campaigns/"+addr+"/donate", admin.SessionID, amountRequest{AmountSOL: "lots"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(t, http.MethodPost, "/campaigns/not-base58!/donate", admin.SessionID, amountRequest{AmountSOL: "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = api.do(t, http.MethodPost, "/campaigns/"+solana.NewWallet().PublicKey().String()+"/donate", admin.SessionID, amountRequest{AmountSOL: "1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, submissions, api.ledger.Submissions)
}

func TestListCampaignsRefreshFailure(t *testing.T) {
	api := newTestAPI(t, fakeProfiles{}, nil)
	api.ledger.FailFetch(errors.New("rpc down"))
	rec := api.do(t, http.MethodGet, "/campaigns?refresh=true", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = api.do(t, http.MethodGet, "/campaigns?tab=everything", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProfile(t *testing.T) {
	api := newTestAPI(t, fakeProfiles{data: &profile.UserData{ID: "1", FollowerCount: 10, FollowingCount: 2, Points: "99"}}, nil)
	s := api.connect(t)

	rec := api.do(t, http.MethodGet, "/profiles/alice", s.SessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[profileResponse](t, rec)
	assert.EqualValues(t, 10, resp.FollowerCount)
	assert.Equal(t, "99", resp.Points)
	assert.Equal(t, "https://via.placeholder.com/80?text=AL", resp.Avatar)
	assert.Equal(t, profile.ShortAddress(s.Wallet), resp.ShortWallet)

	api = newTestAPI(t, fakeProfiles{err: profile.ErrNotFound}, nil)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/profiles/ghost", "", nil).Code)

	api = newTestAPI(t, fakeProfiles{err: errors.New("timeout")}, nil)
	rec = api.do(t, http.MethodGet, "/profiles/alice", "", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to fetch user data")
}

func TestListActions(t *testing.T) {
	w := solana.NewWallet().PublicKey().String()
	journal := fakeJournal{rows: []db.ActionLog{
		{ID: "1", Kind: "donate", Wallet: w, State: "confirmed", CreatedAt: time.Now()},
		{ID: "2", Kind: "donate", Wallet: "someone-else", State: "confirmed", CreatedAt: time.Now()},
	}}
	api := newTestAPI(t, fakeProfiles{}, journal)

	rec := api.do(t, http.MethodGet, "/wallets/"+w+"/actions", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[struct{ Actions []db.ActionLog }](t, rec)
	require.Len(t, resp.Actions, 1)
	assert.Equal(t, "1", resp.Actions[0].ID)

	rec = api.do(t, http.MethodGet, "/wallets/nope!/actions", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	api = newTestAPI(t, fakeProfiles{}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, api.do(t, http.MethodGet, "/wallets/"+w+"/actions", "", nil).Code)
}
