package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"crowdfund/internal/domain/campaign"
	"crowdfund/internal/profile"
	"crowdfund/internal/sol"
	"crowdfund/internal/wallet"
)

// NewRootCommand builds the crowdfund command tree.
func NewRootCommand(build Builder) *cobra.Command {
	var app *App
	root := &cobra.Command{
		Use:           "crowdfund",
		Short:         "Create, fund and withdraw from on-chain crowdfunding campaigns",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[annotationWallet] == "" {
				return nil
			}
			a, err := build(cmd.Context())
			if err != nil {
				return err
			}
			app = a
			return nil
		},
	}
	get := func() *App { return app }

	for _, cmd := range []*cobra.Command{
		newCampaignsCommand(get),
		newCreateCommand(get),
		newTransferCommand(get, "donate", "Donate SOL to a campaign", func(a *App) transfer { return a.Actions.Donate }),
		newTransferCommand(get, "withdraw", "Withdraw SOL from a campaign you administer", func(a *App) transfer { return a.Actions.Withdraw }),
		newProfileCommand(get),
	} {
		cmd.Annotations = map[string]string{annotationWallet: "true"}
		root.AddCommand(cmd)
	}
	return root
}

// annotationWallet marks commands that connect the wallet before running.
// help and completion stay usable without a keypair.
const annotationWallet = "wallet"

func newCampaignsCommand(app func() *App) *cobra.Command {
	var tab string
	cmd := &cobra.Command{
		Use:   "campaigns",
		Short: "List campaigns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := campaign.ParseTab(tab)
			if err != nil {
				return err
			}
			a := app()
			list, err := a.Repository.Reload(cmd.Context())
			if err != nil {
				return err
			}
			printCampaigns(cmd.OutOrStdout(), campaign.Filter(list, a.Session.PublicKey, t))
			return nil
		},
	}
	cmd.Flags().StringVar(&tab, "tab", "", "mine or others")
	return cmd
}

func newCreateCommand(app func() *App) *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create this wallet's campaign (one per wallet)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			out, err := a.Actions.Create(cmd.Context(), a.Session, name, description)
			return report(cmd.OutOrStdout(), out, err)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "campaign name")
	cmd.Flags().StringVar(&description, "description", "", "campaign description")
	return cmd
}

type transfer func(ctx context.Context, session *wallet.Session, c campaign.Campaign, amount uint64) (*campaign.Outcome, error)

func newTransferCommand(app func() *App, use, short string, pick func(*App) transfer) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <campaign> <amount-sol>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := solana.PublicKeyFromBase58(args[0])
			if err != nil {
				return fmt.Errorf("campaign address: %w", err)
			}
			amount, err := sol.ParseSOL(args[1])
			if err != nil {
				return err
			}
			a := app()
			if _, err := a.Repository.Reload(cmd.Context()); err != nil {
				return err
			}
			target, err := a.Repository.Find(cmd.Context(), addr)
			if err != nil {
				return err
			}
			out, err := pick(a)(cmd.Context(), a.Session, target, amount)
			return report(cmd.OutOrStdout(), out, err)
		},
	}
}

func newProfileCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "profile <username>",
		Short: "Show a DSCVR profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			data, err := a.Profiles.GetUserData(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s\n", args[0])
			fmt.Fprintf(w, "%d Followers  %d Following\n", data.FollowerCount, data.FollowingCount)
			fmt.Fprintf(w, "Points: %s\n", data.Points)
			fmt.Fprintf(w, "Wallet Address: %s\n", profile.ShortAddress(a.Session.PublicKey.String()))
			return nil
		},
	}
}

func report(w io.Writer, out *campaign.Outcome, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out.Message())
	return nil
}

func printCampaigns(w io.Writer, list []campaign.Campaign) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tBALANCE\tADMIN\tDESCRIPTION")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Name, c.Address, sol.FormatSOL(c.AmountDonated), c.Admin, c.Description)
	}
	_ = tw.Flush()
}
