package router

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"crowdfund/internal/db"
	"crowdfund/internal/domain/campaign"
	"crowdfund/internal/observability/metrics"
	"crowdfund/internal/profile"
	"crowdfund/internal/sol"
	"crowdfund/internal/wallet"
)

// SessionHeader carries the session id returned by POST /sessions.
const SessionHeader = "X-Session-ID"

// ProfileFetcher looks up social profile data.
type ProfileFetcher interface {
	GetUserData(ctx context.Context, username string) (*profile.UserData, error)
}

// ActionLister reads the action journal.
type ActionLister interface {
	ListActionLogs(ctx context.Context, wallet string, limit int) ([]db.ActionLog, error)
}

// Dependencies enumerates services required by API handlers.
type Dependencies struct {
	Repository *campaign.Repository
	Actions    *campaign.Service
	Sessions   *wallet.Registry
	Profiles   ProfileFetcher
	Journal    ActionLister
	Logger     zerolog.Logger
}

// New builds a gin.Engine with all routes registered.
func New(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(metrics.GinLogger(deps.Logger), gin.Recovery(), metrics.GinMiddleware())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := &handler{
		repo:     deps.Repository,
		actions:  deps.Actions,
		sessions: deps.Sessions,
		profiles: deps.Profiles,
		journal:  deps.Journal,
		log:      deps.Logger,
	}

	router.POST("/sessions", h.connect)
	router.DELETE("/sessions/:id", h.disconnect)

	router.GET("/campaigns", h.listCampaigns)
	router.POST("/campaigns", h.createCampaign)
	router.POST("/campaigns/:address/donate", h.donate)
	router.POST("/campaigns/:address/withdraw", h.withdraw)

	router.GET("/profiles/:username", h.getProfile)
	router.GET("/wallets/:address/actions", h.listActions)

	return router
}

type handler struct {
	repo     *campaign.Repository
	actions  *campaign.Service
	sessions *wallet.Registry
	profiles ProfileFetcher
	journal  ActionLister
	log      zerolog.Logger
}

type sessionResponse struct {
	SessionID       string          `json:"session_id"`
	Wallet          string          `json:"wallet"`
	Profile         *wallet.Profile `json:"profile,omitempty"`
	CampaignsLoaded bool            `json:"campaigns_loaded"`
}

type campaignCard struct {
	Address       string `json:"address"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	AmountDonated uint64 `json:"amount_donated"`
	Balance       string `json:"balance"`
	Admin         string `json:"admin"`
	CanWithdraw   bool   `json:"can_withdraw"`
}

type createCampaignRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description" binding:"required"`
}

type amountRequest struct {
	AmountSOL string `json:"amount_sol" binding:"required"`
}

type actionResponse struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	Campaign  string `json:"campaign"`
	Signature string `json:"signature,omitempty"`
	Message   string `json:"message"`
}

type profileResponse struct {
	Username       string `json:"username"`
	Avatar         string `json:"avatar"`
	FollowerCount  int64  `json:"follower_count"`
	FollowingCount int64  `json:"following_count"`
	Points         string `json:"points"`
	Wallet         string `json:"wallet,omitempty"`
	ShortWallet    string `json:"short_wallet,omitempty"`
}

func (h *handler) session(c *gin.Context) (*wallet.Session, error) {
	return h.sessions.Get(c.GetHeader(SessionHeader))
}

func (h *handler) connect(c *gin.Context) {
	s, err := h.sessions.Open(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("connect wallet")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	_, reloadErr := h.repo.Reload(c.Request.Context())
	c.JSON(http.StatusCreated, sessionResponse{
		SessionID:       s.ID,
		Wallet:          s.PublicKey.String(),
		Profile:         s.Profile,
		CampaignsLoaded: reloadErr == nil,
	})
}

func (h *handler) disconnect(c *gin.Context) {
	h.sessions.Close(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (h *handler) listCampaigns(c *gin.Context) {
	tab, err := campaign.ParseTab(c.Query("tab"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, sessErr := h.session(c)
	if tab != campaign.TabAll && sessErr != nil {
		writeError(c, sessErr)
		return
	}

	var list []campaign.Campaign
	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh {
		if list, err = h.repo.Reload(c.Request.Context()); err != nil {
			writeError(c, err)
			return
		}
	} else {
		list = h.repo.Snapshot(c.Request.Context())
	}

	var me solana.PublicKey
	if s != nil {
		me = s.PublicKey
	}
	list = campaign.Filter(list, me, tab)
	cards := make([]campaignCard, 0, len(list))
	for _, item := range list {
		cards = append(cards, campaignCard{
			Address:       item.Address.String(),
			Name:          item.Name,
			Description:   item.Description,
			AmountDonated: item.AmountDonated,
			Balance:       sol.FormatSOL(item.AmountDonated),
			Admin:         item.Admin.String(),
			CanWithdraw:   s != nil && item.Admin.Equals(me),
		})
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": cards})
}

func (h *handler) createCampaign(c *gin.Context) {
	s, err := h.session(c)
	if err != nil {
		writeError(c, err)
		return
	}
	var req createCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.actions.Create(c.Request.Context(), s, req.Name, req.Description)
	h.writeOutcome(c, http.StatusCreated, out, err)
}

func (h *handler) donate(c *gin.Context) {
	h.transfer(c, h.actions.Donate)
}

func (h *handler) withdraw(c *gin.Context) {
	h.transfer(c, h.actions.Withdraw)
}

type transferFunc func(ctx context.Context, s *wallet.Session, c campaign.Campaign, amount uint64) (*campaign.Outcome, error)

func (h *handler) transfer(c *gin.Context, action transferFunc) {
	s, err := h.session(c)
	if err != nil {
		writeError(c, err)
		return
	}
	addr, err := solana.PublicKeyFromBase58(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign address"})
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := sol.ParseSOL(req.AmountSOL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target, err := h.repo.Find(c.Request.Context(), addr)
	if err != nil {
		writeError(c, err)
		return
	}
	out, err := action(c.Request.Context(), s, target, amount)
	h.writeOutcome(c, http.StatusOK, out, err)
}

func (h *handler) writeOutcome(c *gin.Context, okStatus int, out *campaign.Outcome, err error) {
	if out == nil {
		writeError(c, err)
		return
	}
	resp := actionResponse{
		ID:       out.Action.ID,
		State:    string(out.State),
		Campaign: out.Action.Campaign.String(),
		Message:  out.Message(),
	}
	if out.Signature != (solana.Signature{}) {
		resp.Signature = out.Signature.String()
	}
	if err != nil {
		c.JSON(statusFor(err), resp)
		return
	}
	c.JSON(okStatus, resp)
}

func (h *handler) getProfile(c *gin.Context) {
	username := c.Param("username")
	data, err := h.profiles.GetUserData(c.Request.Context(), username)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No user data found"})
			return
		}
		h.log.Warn().Err(err).Str("username", username).Msg("fetch profile")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch user data"})
		return
	}

	resp := profileResponse{
		Username:       username,
		Avatar:         profile.Avatar(username, ""),
		FollowerCount:  data.FollowerCount,
		FollowingCount: data.FollowingCount,
		Points:         data.Points.String(),
	}
	if s, err := h.session(c); err == nil {
		resp.Wallet = s.PublicKey.String()
		resp.ShortWallet = profile.ShortAddress(resp.Wallet)
		if s.Profile != nil {
			resp.Avatar = profile.Avatar(username, s.Profile.Avatar)
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) listActions(c *gin.Context) {
	if h.journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "action journal disabled"})
		return
	}
	addr := c.Param("address")
	if _, err := solana.PublicKeyFromBase58(addr); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet address"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	items, err := h.journal.ListActionLogs(c.Request.Context(), addr, limit)
	if err != nil {
		h.log.Error().Err(err).Str("wallet", addr).Msg("list actions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list actions"})
		return
	}
	if items == nil {
		items = []db.ActionLog{}
	}
	c.JSON(http.StatusOK, gin.H{"actions": items})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, wallet.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, campaign.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, campaign.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, campaign.ErrCampaignNotFound):
		return http.StatusNotFound
	case errors.Is(err, campaign.ErrSubmission):
		return http.StatusBadGateway
	case errors.Is(err, campaign.ErrFetch):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
