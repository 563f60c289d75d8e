package campaign

import (
	"errors"
	"sort"

	"github.com/gagliardetto/solana-go"
)

// Error taxonomy surfaced by the repository and actions.
var (
	// ErrValidation is client-detected bad input; the user can fix the form and retry.
	ErrValidation = errors.New("validation failed")
	// ErrAuthorization means the wallet lacks rights over the campaign.
	ErrAuthorization = errors.New("not authorized")
	// ErrSubmission means the RPC node or the program rejected the transaction.
	ErrSubmission = errors.New("submission failed")
	// ErrFetch means the campaign list could not be refreshed.
	ErrFetch = errors.New("fetch campaigns failed")
	// ErrCampaignNotFound indicates the campaign is not in the current list.
	ErrCampaignNotFound = errors.New("campaign not found")
)

// Campaign is the client-side view of an on-chain campaign account.
type Campaign struct {
	Address       solana.PublicKey `json:"address"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	AmountDonated uint64           `json:"amount_donated"`
	Admin         solana.PublicKey `json:"admin"`
}

// Tab selects which campaigns a wallet sees.
type Tab string

const (
	TabAll    Tab = ""
	TabMine   Tab = "mine"
	TabOthers Tab = "others"
)

// ParseTab accepts "", "mine" and "others".
func ParseTab(s string) (Tab, error) {
	switch Tab(s) {
	case TabAll, TabMine, TabOthers:
		return Tab(s), nil
	}
	return TabAll, errors.New("tab must be mine or others")
}

// Filter returns the campaigns of list that belong on tab for wallet.
func Filter(list []Campaign, wallet solana.PublicKey, tab Tab) []Campaign {
	out := make([]Campaign, 0, len(list))
	for _, c := range list {
		mine := c.Admin.Equals(wallet)
		if (tab == TabMine && !mine) || (tab == TabOthers && mine) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func sortCampaigns(list []Campaign) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].Address.String() < list[j].Address.String()
	})
}
