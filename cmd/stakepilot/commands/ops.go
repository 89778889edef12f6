package commands

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/stakepilot/stakepilot/internal/contracts"
	"github.com/stakepilot/stakepilot/internal/orchestrator"
)

// NewMintCmd mints test tokens to the session account.
func NewMintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mint [amount]",
		Short: "Mint test " + contracts.TokenSymbol + " tokens (default: 1000)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount := "1000"
			if len(args) == 1 {
				amount = args[0]
			}
			return runOp(orchestrator.OpMint, amount)
		},
	}
}

// NewApproveCmd grants the staking contract an allowance.
func NewApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <amount|max>",
		Short: "Approve the staking contract to move your tokens",
		Long:  "Approve the staking contract for exactly the given amount. \"max\" approves your full balance.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(orchestrator.OpApprove, args[0])
		},
	}
}

// NewStakeCmd stakes tokens.
func NewStakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stake <amount|max>",
		Short: "Stake tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(orchestrator.OpStake, args[0])
		},
	}
}

// NewUnstakeCmd withdraws staked tokens.
func NewUnstakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unstake <amount|max>",
		Short: "Withdraw staked tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(orchestrator.OpUnstake, args[0])
		},
	}
}

// NewClaimCmd claims all pending rewards.
func NewClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim",
		Short: "Claim all pending rewards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOp(orchestrator.OpClaim, "")
		},
	}
}

// runOp drives one transaction flow end to end: build the session, resolve
// the amount, confirm, submit, wait for settlement, then show the refreshed
// state.
func runOp(kind orchestrator.OpKind, amountArg string) error {
	ctx := context.Background()
	s, err := buildSession(ctx, signerRequired)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.requireSupported(); err != nil {
		Error(err.Error())
		return err
	}

	amount, err := resolveAmount(kind, amountArg, s)
	if err != nil {
		return err
	}

	if kind == orchestrator.OpStake {
		if view := s.orch.View(amount); view.NeedsApproval {
			Warning(fmt.Sprintf("allowance %s does not cover a stake of %s", view.Allowance, amount))
			return fmt.Errorf("approval required first (run: stakepilot approve %s)", amount)
		}
	}

	if err := confirmOp(kind, amount, s.info.ChainName); err != nil {
		return err
	}

	// Subscribe before submitting so the settled transition cannot be missed
	events, unsubscribe := s.orch.Subscribe()
	defer unsubscribe()
	preSubmit := s.orch.Snapshot().UpdatedAt

	switch kind {
	case orchestrator.OpMint:
		err = s.orch.Mint(ctx, amount)
	case orchestrator.OpApprove:
		err = s.orch.Approve(ctx, amount)
	case orchestrator.OpStake:
		err = s.orch.Stake(ctx, amount)
	case orchestrator.OpUnstake:
		err = s.orch.Unstake(ctx, amount)
	case orchestrator.OpClaim:
		err = s.orch.Claim(ctx)
	}
	if err != nil {
		Error(fmt.Sprintf("%s rejected: %v", kind, err))
		return err
	}

	if err := awaitSettlement(events, kind); err != nil {
		Error(fmt.Sprintf("%s failed: %v", kind, err))
		return err
	}
	Success(fmt.Sprintf("%s settled", kind))

	showRefreshedState(s, preSubmit)
	return nil
}

// resolveAmount turns "max" into a concrete amount from the snapshot.
func resolveAmount(kind orchestrator.OpKind, arg string, s *session) (string, error) {
	if kind == orchestrator.OpClaim {
		return "", nil
	}
	if arg != "max" {
		return arg, nil
	}

	snap := s.orch.Snapshot()
	var max *big.Int
	switch kind {
	case orchestrator.OpApprove, orchestrator.OpStake:
		max = snap.Balance
	case orchestrator.OpUnstake:
		max = snap.Staked
	default:
		return "", fmt.Errorf("max is not meaningful for %s", kind)
	}
	if max == nil {
		return "", fmt.Errorf("cannot resolve max: value not loaded yet")
	}
	if max.Sign() == 0 {
		return "", fmt.Errorf("cannot %s: nothing available", kind)
	}
	return contracts.FormatUnits(max), nil
}

func confirmOp(kind orchestrator.OpKind, amount, network string) error {
	if AssumeYes || !isTTY() {
		return nil
	}

	title := fmt.Sprintf("Submit %s on %s?", kind, network)
	description := "Claims all pending rewards"
	if amount != "" {
		description = fmt.Sprintf("Amount: %s", FormatMST(amount))
	}

	confirmed := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Submit").
			Negative("Cancel").
			Value(&confirmed),
	))
	if err := form.Run(); err != nil {
		return err
	}
	if !confirmed {
		return fmt.Errorf("cancelled")
	}
	return nil
}

// awaitSettlement consumes transitions until the flow settles.
func awaitSettlement(events <-chan orchestrator.Transition, kind orchestrator.OpKind) error {
	return WithSpinner("Waiting for confirmation", func() error {
		for ev := range events {
			if ev.Kind != kind {
				continue
			}
			switch ev.State {
			case orchestrator.StateConfirming:
				if !isTTY() && ev.TxHash != "" {
					fmt.Printf("tx %s submitted\n", ev.TxHash)
				}
			case orchestrator.StateSettled:
				return ev.Err
			}
		}
		return fmt.Errorf("session closed before settlement")
	})
}

// showRefreshedState waits for the post-settlement reload and prints the
// updated balances.
func showRefreshedState(s *session, before time.Time) {
	deadline := time.Now().Add(s.cfg.SettleDelay() + 5*time.Second)
	for time.Now().Before(deadline) {
		if s.orch.Snapshot().UpdatedAt.After(before) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	view := s.orch.View("")
	fmt.Println(StatusBox("Updated State", [][2]string{
		{"Balance", unknownOr(view.BalanceKnown, FormatMST(view.Balance))},
		{"Staked", unknownOr(view.StakedKnown, FormatMST(view.Staked))},
		{"Rewards", unknownOr(view.RewardsKnown, FormatMST(view.Rewards))},
		{"Allowance", unknownOr(view.AllowanceKnown, FormatMST(view.Allowance))},
	}))
}
