package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stakepilot/stakepilot/internal/orchestrator"
)

// NewStatusCmd shows the staking session: chain, account, balances and
// derived pool figures.
func NewStatusCmd() *cobra.Command {
	var stakeInput string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show staking session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			s, err := buildSession(ctx, signerNone)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.requireSupported(); err != nil {
				fmt.Println(StyleBoxError.Render(StyleError.Render(err.Error())))
				return err
			}

			view := s.orch.View(stakeInput)

			account := s.info.Account
			if account == "" {
				account = "none (read-only)"
			}

			fields := [][2]string{
				{"Network", fmt.Sprintf("%s (%d)", s.info.ChainName, s.info.ChainID)},
				{"Account", account},
				{"Balance", unknownOr(view.BalanceKnown, FormatMST(view.Balance))},
				{"Staked", unknownOr(view.StakedKnown, FormatMST(view.Staked))},
				{"Rewards", unknownOr(view.RewardsKnown, FormatMST(view.Rewards))},
				{"Allowance", unknownOr(view.AllowanceKnown, FormatMST(view.Allowance))},
				{"APY", unknownOr(view.RateKnown, fmt.Sprintf("%.2f%%", view.APYPercent))},
				{"Pool share", fmt.Sprintf("%.4f%%", view.PoolSharePercent)},
				{"Total staked", unknownOr(view.TotalStakedKnown, FormatMST(view.TotalStaked))},
			}
			fmt.Println(StatusBox("Staking Session", fields))

			var rows [][]string
			for _, kind := range orchestrator.AllOpKinds {
				state, hash, lastErr := s.orch.OpStatus(kind)
				outcome := ""
				if lastErr != nil {
					outcome = lastErr.Error()
				}
				if hash != "" {
					hash = FormatAddress(hash)
				}
				rows = append(rows, []string{kind.String(), state.String(), hash, outcome})
			}
			fmt.Println(RenderTable([]string{"Operation", "State", "Last Tx", "Last Error"}, rows))

			if stakeInput != "" && view.NeedsApproval {
				Warning(fmt.Sprintf("staking %s requires an approval first (run: stakepilot approve %s)",
					stakeInput, stakeInput))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&stakeInput, "stake", "", "Amount you intend to stake (reports whether approval is needed)")
	return cmd
}
