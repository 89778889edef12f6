package commands

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/ethereum/go-ethereum/common"

	"github.com/stakepilot/stakepilot/internal/api"
	"github.com/stakepilot/stakepilot/internal/chain"
	"github.com/stakepilot/stakepilot/internal/config"
	"github.com/stakepilot/stakepilot/internal/contracts"
	"github.com/stakepilot/stakepilot/internal/logging"
	"github.com/stakepilot/stakepilot/internal/metrics"
	"github.com/stakepilot/stakepilot/internal/orchestrator"
	"github.com/stakepilot/stakepilot/internal/wallet"
)

// Global CLI flags
var (
	// ConfigPath points at the YAML config file (default: ~/.stakepilot/config.yaml)
	ConfigPath string

	// MockMode runs against an in-memory contract pair, no RPC needed
	MockMode bool

	// AssumeYes skips interactive confirmations
	AssumeYes bool
)

// mockAccount is the session account in mock mode when no wallet exists.
// It is the first well-known hardhat development account.
var mockAccount = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

// Signer requirement levels for buildSession.
const (
	signerNone = iota
	signerOptional
	signerRequired
)

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".stakepilot", "config.yaml")
}

func loadConfig() (*config.Config, error) {
	path := ConfigPath
	if path == "" {
		path = defaultConfigPath()
	}
	return config.Load(path)
}

func initLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.Daemon.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if cfg.Daemon.LogFormat == "text" {
		logging.SetTextOutput(os.Stderr)
	} else {
		logging.SetOutput(os.Stderr)
	}
	logging.SetLevel(level)
	logging.EnableRedaction()
}

// session bundles everything a command needs to talk to the staking
// contracts. When the active chain has no known deployment, orch is nil and
// info.Supported is false; commands fail loudly instead of showing zeros.
type session struct {
	cfg       *config.Config
	registry  *chain.Registry
	client    *chain.Client
	orch      *orchestrator.Orchestrator
	collector *metrics.Collector
	info      api.ChainInfo

	cancel context.CancelFunc
}

// buildSession wires config, wallet, chain client, contracts and the
// orchestrator for the active chain.
func buildSession(ctx context.Context, signerMode int) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	initLogging(cfg)

	collector := metrics.NewCollector()

	if MockMode {
		return buildMockSession(ctx, cfg, collector)
	}

	registry, err := chain.NewRegistry(cfg.Chains)
	if err != nil {
		return nil, err
	}

	chainID := cfg.Chain.ActiveChainID
	rec, _ := cfg.ActiveChain()
	info := api.ChainInfo{
		ChainID:   chainID,
		ChainName: rec.Name,
	}

	addrs, err := registry.Lookup(chainID)
	if errors.Is(err, chain.ErrUnsupportedChain) {
		registry.Close()
		return &session{cfg: cfg, collector: collector, info: info}, nil
	}
	if err != nil {
		registry.Close()
		return nil, err
	}

	info.Supported = true
	info.TokenAddress = addrs.Token.Hex()
	info.StakingAddress = addrs.Staking.Hex()

	wm, err := wallet.Load(cfg.Daemon.KeystoreDir)
	if err != nil {
		registry.Close()
		return nil, err
	}

	var key *ecdsa.PrivateKey
	var account common.Address
	if wm != nil {
		account = wm.Address()
		info.Account = account.Hex()
		if signerMode != signerNone {
			key, err = unlockWallet(wm)
			if err != nil {
				if signerMode == signerRequired {
					registry.Close()
					return nil, err
				}
				Warning(fmt.Sprintf("wallet locked, continuing read-only: %v", err))
			}
		}
	} else if signerMode == signerRequired {
		registry.Close()
		return nil, fmt.Errorf("no wallet found in %s (run: stakepilot wallet create)", cfg.Daemon.KeystoreDir)
	}

	var maxGasPrice *big.Int
	if cfg.Chain.MaxGasPriceGwei > 0 {
		maxGasPrice = new(big.Int).Mul(big.NewInt(cfg.Chain.MaxGasPriceGwei), big.NewInt(1e9))
	}
	client, err := chain.NewClient(&chain.ClientConfig{
		RPCURL:             rec.RPCURL,
		WSURL:              rec.WSURL,
		ChainID:            chainID,
		BlockConfirmations: cfg.Chain.BlockConfirmations,
		MaxGasPrice:        maxGasPrice,
	}, key)
	if err != nil {
		registry.Close()
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		registry.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", rec.RPCURL, err)
	}

	token, err := contracts.NewToken(client, addrs.Token)
	if err != nil {
		client.Close()
		registry.Close()
		return nil, err
	}
	staking, err := contracts.NewStaking(client, token, addrs.Staking)
	if err != nil {
		client.Close()
		registry.Close()
		return nil, err
	}

	orch, err := orchestrator.New(client, token, staking, orchestrator.Config{
		Account:        account,
		SettleDelay:    cfg.SettleDelay(),
		ReadRatePerSec: cfg.Chain.ReadRatePerSec,
		Metrics:        collector,
	})
	if err != nil {
		client.Close()
		registry.Close()
		return nil, err
	}
	if err := orch.Start(ctx); err != nil {
		client.Close()
		registry.Close()
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	if err := registry.Watch(watchCtx); err != nil {
		logging.Warn("deployment file watch unavailable", logging.Err(err))
	}

	return &session{
		cfg:       cfg,
		registry:  registry,
		client:    client,
		orch:      orch,
		collector: collector,
		info:      info,
		cancel:    cancel,
	}, nil
}

func buildMockSession(ctx context.Context, cfg *config.Config, collector *metrics.Collector) (*session, error) {
	account := mockAccount
	if wm, err := wallet.Load(cfg.Daemon.KeystoreDir); err == nil && wm != nil {
		account = wm.Address()
	}

	token := contracts.NewMockToken(account)
	staking := contracts.NewMockStaking(token, account)
	orch, err := orchestrator.New(nil, token, staking, orchestrator.Config{
		Account: account,
		Metrics: collector,
	})
	if err != nil {
		return nil, err
	}
	if err := orch.Start(ctx); err != nil {
		return nil, err
	}

	return &session{
		cfg:       cfg,
		orch:      orch,
		collector: collector,
		info: api.ChainInfo{
			ChainID:   config.ChainIDHardhatLocal,
			ChainName: "mock",
			Supported: true,
			Account:   account.Hex(),
		},
	}, nil
}

// Close tears the session down. Pending confirmation waits are abandoned;
// nothing of this session carries over to the next.
func (s *session) Close() {
	if s == nil {
		return
	}
	if s.orch != nil {
		s.orch.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.client != nil {
		s.client.Close()
	}
	if s.registry != nil {
		s.registry.Close()
	}
}

// requireSupported returns the loud error for an unsupported chain.
func (s *session) requireSupported() error {
	if s.orch == nil {
		return fmt.Errorf("chain %d (%s) has no known contract deployment: actions disabled",
			s.info.ChainID, s.info.ChainName)
	}
	return nil
}

// unlockWallet obtains the wallet password (keyring first, then an
// interactive prompt) and decrypts the signing key.
func unlockWallet(wm *wallet.Manager) (*ecdsa.PrivateKey, error) {
	if password, err := wallet.RetrievePassword(); err == nil && password != "" {
		if key, err := wm.PrivateKey(password); err == nil {
			return key, nil
		}
		Warning("stored wallet password did not decrypt the keystore")
	}

	if !isTTY() {
		return nil, fmt.Errorf("wallet password unavailable (store one with: stakepilot wallet password)")
	}

	var password string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Wallet password").
			EchoMode(huh.EchoModePassword).
			Value(&password),
	))
	if err := form.Run(); err != nil {
		return nil, err
	}
	return wm.PrivateKey(password)
}
