package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete stakepilot configuration
type Config struct {
	Daemon  DaemonConfig          `yaml:"daemon"`
	API     APIConfig             `yaml:"api"`
	Chain   ChainConfig           `yaml:"chain"`
	Refresh RefreshConfig         `yaml:"refresh"`
	Chains  map[int64]ChainRecord `yaml:"chains"`
}

// DaemonConfig contains daemon settings
type DaemonConfig struct {
	DataDir     string `yaml:"data_dir"`
	KeystoreDir string `yaml:"keystore_dir"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // "json" or "text"
}

// APIConfig contains API server settings
type APIConfig struct {
	ListenAddr       string `yaml:"listen_addr"`
	ReadTimeoutSecs  int    `yaml:"read_timeout_secs"`  // Read timeout (default: 30)
	WriteTimeoutSecs int    `yaml:"write_timeout_secs"` // Write timeout (default: 30)
	IdleTimeoutSecs  int    `yaml:"idle_timeout_secs"`  // Idle connection timeout (default: 120)
}

// ChainConfig contains settings for the active chain connection
type ChainConfig struct {
	// ActiveChainID selects which entry of Chains to use
	ActiveChainID int64 `yaml:"active_chain_id"`
	// BlockConfirmations to wait beyond inclusion before a tx counts as settled
	BlockConfirmations int `yaml:"block_confirmations"`
	// MaxGasPriceGwei caps the gas price for submitted transactions (0 = no cap)
	MaxGasPriceGwei int64 `yaml:"max_gas_price_gwei"`
	// ReadRatePerSec limits read-only RPC calls per second (default: 10)
	ReadRatePerSec float64 `yaml:"read_rate_per_sec"`
}

// RefreshConfig controls post-transaction state reloads
type RefreshConfig struct {
	// SettleDelayMs is the wait after a confirmed tx before re-reading state,
	// a buffer for RPC nodes whose eth_call state lags receipt availability
	SettleDelayMs int `yaml:"settle_delay_ms"`
}

// ChainRecord describes one supported chain: its RPC endpoints and the
// token/staking contract addresses deployed on it.
type ChainRecord struct {
	Name           string `yaml:"name"`
	RPCURL         string `yaml:"rpc_url"`
	WSURL          string `yaml:"ws_url"`
	TokenAddress   string `yaml:"token_address"`
	StakingAddress string `yaml:"staking_address"`
	// DeploymentFile optionally points at a deployment-info.json written by
	// the contract deploy script; its addresses override the ones above and
	// are hot-reloaded when the file changes.
	DeploymentFile string `yaml:"deployment_file"`
}

// Default chain ids, mirroring the networks the contracts are deployed to.
const (
	ChainIDSepolia      int64 = 11155111
	ChainIDHardhatLocal int64 = 31337
)

// Default returns the default configuration
func Default() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".stakepilot")

	return &Config{
		Daemon: DaemonConfig{
			DataDir:     dataDir,
			KeystoreDir: filepath.Join(dataDir, "keystore"),
			LogLevel:    "info",
			LogFormat:   "json",
		},
		API: APIConfig{
			ListenAddr:       "127.0.0.1:8456",
			ReadTimeoutSecs:  30,
			WriteTimeoutSecs: 30,
			IdleTimeoutSecs:  120,
		},
		Chain: ChainConfig{
			ActiveChainID:      ChainIDSepolia,
			BlockConfirmations: 1,
			MaxGasPriceGwei:    100,
			ReadRatePerSec:     10,
		},
		Refresh: RefreshConfig{
			SettleDelayMs: 2000,
		},
		Chains: map[int64]ChainRecord{
			ChainIDSepolia: {
				Name:   "sepolia",
				RPCURL: "https://rpc.sepolia.org",
			},
			ChainIDHardhatLocal: {
				Name:           "hardhat-local",
				RPCURL:         "http://127.0.0.1:8545",
				DeploymentFile: "deployment-info.json",
			},
		},
	}
}

// Load reads configuration from a YAML file, applies environment overrides
// and validates the result. A missing file is not an error: defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overrides config fields from STAKEPILOT_* environment variables
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("STAKEPILOT_LOG_LEVEL"); v != "" {
		c.Daemon.LogLevel = v
	}
	if v := os.Getenv("STAKEPILOT_LOG_FORMAT"); v != "" {
		c.Daemon.LogFormat = v
	}
	if v := os.Getenv("STAKEPILOT_KEYSTORE_DIR"); v != "" {
		c.Daemon.KeystoreDir = v
	}
	if v := os.Getenv("STAKEPILOT_API_ADDR"); v != "" {
		c.API.ListenAddr = v
	}
	if v := os.Getenv("STAKEPILOT_CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Chain.ActiveChainID = id
		}
	}
	if v := os.Getenv("STAKEPILOT_RPC_URL"); v != "" {
		rec := c.Chains[c.Chain.ActiveChainID]
		rec.RPCURL = v
		if c.Chains == nil {
			c.Chains = make(map[int64]ChainRecord)
		}
		c.Chains[c.Chain.ActiveChainID] = rec
	}
	if v := os.Getenv("STAKEPILOT_DEPLOYMENT_FILE"); v != "" {
		rec := c.Chains[c.Chain.ActiveChainID]
		rec.DeploymentFile = v
		c.Chains[c.Chain.ActiveChainID] = rec
	}
}

// Validate checks the configuration for consistency. It does not require the
// active chain to be present in Chains: an unknown chain id is a legal state
// that surfaces downstream as "unsupported network" with all actions disabled.
func (c *Config) Validate() error {
	switch c.Daemon.LogFormat {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid log_format %q (want json or text)", c.Daemon.LogFormat)
	}

	if c.Chain.BlockConfirmations < 0 {
		return fmt.Errorf("block_confirmations must be >= 0")
	}
	if c.Chain.ReadRatePerSec < 0 {
		return fmt.Errorf("read_rate_per_sec must be >= 0")
	}
	if c.Refresh.SettleDelayMs < 0 {
		return fmt.Errorf("settle_delay_ms must be >= 0")
	}

	for id, rec := range c.Chains {
		if id <= 0 {
			return fmt.Errorf("invalid chain id %d", id)
		}
		if rec.RPCURL == "" {
			return fmt.Errorf("chain %d (%s): rpc_url is required", id, rec.Name)
		}
	}
	return nil
}

// SettleDelay returns the refresh settle delay as a duration
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Refresh.SettleDelayMs) * time.Millisecond
}

// ActiveChain returns the record for the active chain id and whether it exists
func (c *Config) ActiveChain() (ChainRecord, bool) {
	rec, ok := c.Chains[c.Chain.ActiveChainID]
	return rec, ok
}

// Save writes the configuration to a YAML file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
