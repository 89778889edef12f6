package chain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stakepilot/stakepilot/internal/config"
)

const (
	testTokenAddr   = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	testStakingAddr = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
)

func TestRegistry_Lookup(t *testing.T) {
	reg, err := NewRegistry(map[int64]config.ChainRecord{
		11155111: {
			Name:           "sepolia",
			RPCURL:         "https://rpc.sepolia.org",
			TokenAddress:   testTokenAddr,
			StakingAddress: testStakingAddr,
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	defer reg.Close()

	addrs, err := reg.Lookup(11155111)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if addrs.Token != common.HexToAddress(testTokenAddr) {
		t.Errorf("Token address mismatch: %s", addrs.Token.Hex())
	}
	if addrs.Staking != common.HexToAddress(testStakingAddr) {
		t.Errorf("Staking address mismatch: %s", addrs.Staking.Hex())
	}
}

func TestRegistry_UnsupportedChain(t *testing.T) {
	reg, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	defer reg.Close()

	_, err = reg.Lookup(1)
	if !errors.Is(err, ErrUnsupportedChain) {
		t.Errorf("Expected ErrUnsupportedChain, got %v", err)
	}
	if reg.Supported(1) {
		t.Error("Chain 1 should not be supported")
	}
}

func TestRegistry_PartialAddressesNotRegistered(t *testing.T) {
	// A chain with only an RPC endpoint (addresses not yet deployed) must
	// resolve to unsupported, never to a silent default.
	reg, err := NewRegistry(map[int64]config.ChainRecord{
		11155111: {Name: "sepolia", RPCURL: "https://rpc.sepolia.org"},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	defer reg.Close()

	if _, err := reg.Lookup(11155111); !errors.Is(err, ErrUnsupportedChain) {
		t.Errorf("Expected ErrUnsupportedChain, got %v", err)
	}
}

func TestRegistry_InvalidAddressRejected(t *testing.T) {
	_, err := NewRegistry(map[int64]config.ChainRecord{
		31337: {
			Name:           "hardhat-local",
			RPCURL:         "http://127.0.0.1:8545",
			TokenAddress:   "not-an-address",
			StakingAddress: testStakingAddr,
		},
	})
	if err == nil {
		t.Error("Expected error for malformed token address")
	}
}

func TestRegistry_DeploymentFileLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deployment-info.json")
	writeDeployment(t, path, testTokenAddr, testStakingAddr)

	reg, err := NewRegistry(map[int64]config.ChainRecord{
		31337: {
			Name:           "hardhat-local",
			RPCURL:         "http://127.0.0.1:8545",
			DeploymentFile: path,
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	defer reg.Close()

	addrs, err := reg.Lookup(31337)
	if err != nil {
		t.Fatalf("Lookup after deployment file load: %v", err)
	}
	if addrs.Token != common.HexToAddress(testTokenAddr) {
		t.Errorf("Token address mismatch: %s", addrs.Token.Hex())
	}
}

func TestRegistry_DeploymentFileHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deployment-info.json")
	writeDeployment(t, path, testTokenAddr, testStakingAddr)

	reg, err := NewRegistry(map[int64]config.ChainRecord{
		31337: {
			Name:           "hardhat-local",
			RPCURL:         "http://127.0.0.1:8545",
			DeploymentFile: path,
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	defer reg.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := reg.Watch(ctx); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	// Redeploy: same file, new addresses
	newToken := "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"
	writeDeployment(t, path, newToken, testStakingAddr)

	deadline := time.After(3 * time.Second)
	for {
		addrs, err := reg.Lookup(31337)
		if err == nil && addrs.Token == common.HexToAddress(newToken) {
			return
		}
		select {
		case <-deadline:
			t.Fatal("Registry did not pick up redeployed addresses")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func writeDeployment(t *testing.T, path, token, staking string) {
	t.Helper()
	content := `{"network":"hardhat-local","mockToken":"` + token +
		`","stakingContract":"` + staking + `","deployer":"0x0000000000000000000000000000000000000001"}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
