package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stakepilot/stakepilot/cmd/stakepilot/commands"
)

var rootCmd = &cobra.Command{
	Use:   "stakepilot",
	Short: "Stakepilot ERC-20 staking client",
	Long:  "A client for the MST staking contracts: mint, approve, stake, unstake and claim,\nwith live derived state (APY, pool share) and an optional HTTP API.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&commands.ConfigPath, "config", "", "Path to config file (default: ~/.stakepilot/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&commands.MockMode, "mock", false, "Run against in-memory mock contracts (no RPC)")
	rootCmd.PersistentFlags().BoolVarP(&commands.AssumeYes, "yes", "y", false, "Skip confirmation prompts")
}

func main() {
	rootCmd.AddCommand(commands.NewStatusCmd())
	rootCmd.AddCommand(commands.NewMintCmd())
	rootCmd.AddCommand(commands.NewApproveCmd())
	rootCmd.AddCommand(commands.NewStakeCmd())
	rootCmd.AddCommand(commands.NewUnstakeCmd())
	rootCmd.AddCommand(commands.NewClaimCmd())
	rootCmd.AddCommand(commands.NewWalletCmd())
	rootCmd.AddCommand(commands.NewServeCmd())
	rootCmd.AddCommand(commands.NewConfigCmd())
	rootCmd.AddCommand(commands.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
