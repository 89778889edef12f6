package commands

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/stakepilot/stakepilot/internal/wallet"
)

// NewWalletCmd manages the keystore wallet.
func NewWalletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage the staking wallet",
	}
	cmd.AddCommand(newWalletCreateCmd())
	cmd.AddCommand(newWalletImportCmd())
	cmd.AddCommand(newWalletShowCmd())
	cmd.AddCommand(newWalletPasswordCmd())
	return cmd
}

func newWalletCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a new wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			password, err := promptNewPassword()
			if err != nil {
				return err
			}

			var m *wallet.Manager
			err = WithSpinner("Creating wallet", func() error {
				var err error
				m, err = wallet.Create(cfg.Daemon.KeystoreDir, password)
				return err
			})
			if err != nil {
				return err
			}

			Success("wallet created")
			fmt.Println(StatusBox("Wallet", [][2]string{
				{"Address", m.Address().Hex()},
				{"Keystore", m.KeystoreDir()},
			}))

			offerKeyringStore(password)
			Warning("fund this address with test ETH before submitting transactions")
			return nil
		},
	}
}

func newWalletImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <private-key-hex>",
		Short: "Import an existing private key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			password, err := promptNewPassword()
			if err != nil {
				return err
			}

			var m *wallet.Manager
			err = WithSpinner("Importing wallet", func() error {
				var err error
				m, err = wallet.Import(cfg.Daemon.KeystoreDir, args[0], password)
				return err
			})
			if err != nil {
				return err
			}

			Success("wallet imported")
			fmt.Println(StatusBox("Wallet", [][2]string{
				{"Address", m.Address().Hex()},
				{"Keystore", m.KeystoreDir()},
			}))

			offerKeyringStore(password)
			return nil
		},
	}
}

func newWalletShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the wallet address",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			m, err := wallet.Load(cfg.Daemon.KeystoreDir)
			if err != nil {
				return err
			}
			if m == nil {
				return fmt.Errorf("no wallet found in %s (run: stakepilot wallet create)", cfg.Daemon.KeystoreDir)
			}

			fmt.Println(StatusBox("Wallet", [][2]string{
				{"Address", m.Address().Hex()},
				{"Keystore", m.KeystoreDir()},
			}))
			return nil
		},
	}
}

func newWalletPasswordCmd() *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Store or clear the wallet password in the system keyring",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clear {
				if err := wallet.DeletePassword(); err != nil {
					return err
				}
				Success("stored password removed")
				return nil
			}

			var password string
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().
					Title("Wallet password").
					EchoMode(huh.EchoModePassword).
					Value(&password),
			))
			if err := form.Run(); err != nil {
				return err
			}

			backend, err := wallet.StorePassword(password)
			if err != nil {
				return err
			}
			Success(fmt.Sprintf("password stored in %s", backend))
			return nil
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "Remove the stored password")
	return cmd
}

func promptNewPassword() (string, error) {
	var password, confirm string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("New wallet password").
			EchoMode(huh.EchoModePassword).
			Validate(func(s string) error {
				if len(s) < 8 {
					return fmt.Errorf("at least 8 characters")
				}
				return nil
			}).
			Value(&password),
		huh.NewInput().
			Title("Confirm password").
			EchoMode(huh.EchoModePassword).
			Value(&confirm),
	))
	if err := form.Run(); err != nil {
		return "", err
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}

func offerKeyringStore(password string) {
	if !isTTY() {
		return
	}

	store := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Store the password in the system keyring?").
			Description("Lets stakepilot sign without prompting each time").
			Affirmative("Store").
			Negative("Skip").
			Value(&store),
	))
	if err := form.Run(); err != nil || !store {
		return
	}

	backend, err := wallet.StorePassword(password)
	if err != nil {
		Warning(fmt.Sprintf("could not store password: %v", err))
		return
	}
	Success(fmt.Sprintf("password stored in %s", backend))
}
