package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fsnotify/fsnotify"
	"github.com/stakepilot/stakepilot/internal/config"
	"github.com/stakepilot/stakepilot/internal/logging"
	"github.com/stakepilot/stakepilot/internal/util"
)

// ErrUnsupportedChain is returned when no contract addresses are configured
// for a chain id. Callers must surface this as an explicit unsupported state
// (actions disabled, no reads attempted), never fall back to a default chain.
var ErrUnsupportedChain = errors.New("unsupported chain")

// Addresses holds the contract addresses deployed on one chain
type Addresses struct {
	Token   common.Address
	Staking common.Address
}

// Registry maps chain ids to deployed contract addresses. Entries come from
// the config file and, where configured, from a deployment-info.json written
// by the contract deploy script. Deployment files are hot-reloaded so a local
// redeploy is picked up without restarting the daemon.
type Registry struct {
	mu      sync.RWMutex
	entries map[int64]Addresses

	// chain id -> deployment file path, for watching
	deployFiles map[int64]string

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// NewRegistry builds a registry from the configured chains. A chain whose
// addresses are absent (and has no deployment file) simply gets no entry;
// looking it up yields ErrUnsupportedChain.
func NewRegistry(chains map[int64]config.ChainRecord) (*Registry, error) {
	r := &Registry{
		entries:     make(map[int64]Addresses),
		deployFiles: make(map[int64]string),
		done:        make(chan struct{}),
	}

	for id, rec := range chains {
		if rec.TokenAddress != "" && rec.StakingAddress != "" {
			addrs, err := parseAddresses(rec.TokenAddress, rec.StakingAddress)
			if err != nil {
				return nil, fmt.Errorf("chain %d (%s): %w", id, rec.Name, err)
			}
			r.entries[id] = addrs
		}
		if rec.DeploymentFile != "" {
			r.deployFiles[id] = rec.DeploymentFile
			if err := r.loadDeploymentFile(id, rec.DeploymentFile); err != nil && !os.IsNotExist(err) {
				logging.Warn("failed to load deployment file",
					"chain_id", id, "path", rec.DeploymentFile, "error", err)
			}
		}
	}

	return r, nil
}

// Lookup returns the contract addresses for a chain id
func (r *Registry) Lookup(chainID int64) (Addresses, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	addrs, ok := r.entries[chainID]
	if !ok {
		return Addresses{}, fmt.Errorf("%w: chain id %d", ErrUnsupportedChain, chainID)
	}
	return addrs, nil
}

// Supported reports whether a chain id has configured addresses
func (r *Registry) Supported(chainID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[chainID]
	return ok
}

// Watch starts watching deployment files for changes. Returns without error
// if there is nothing to watch.
func (r *Registry) Watch(ctx context.Context) error {
	if len(r.deployFiles) == 0 {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	r.watcher = watcher

	// Watch the containing directories: editors and deploy scripts replace
	// files rather than writing in place, which drops the watch on the file
	// itself.
	dirs := make(map[string]bool)
	for _, path := range r.deployFiles {
		dir := filepath.Dir(path)
		if !dirs[dir] {
			if err := watcher.Add(dir); err != nil {
				logging.Warn("failed to watch deployment dir", "dir", dir, "error", err)
				continue
			}
			dirs[dir] = true
		}
	}

	util.SafeGoWithName("registry-watch", func() {
		r.watchLoop(ctx)
	})
	return nil
}

func (r *Registry) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			for id, path := range r.deployFiles {
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if err := r.loadDeploymentFile(id, path); err != nil {
					logging.Warn("deployment file reload failed",
						"chain_id", id, "path", path, "error", err)
					continue
				}
				logging.Info("deployment addresses reloaded", "chain_id", id, "path", path)
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("registry watcher error", "error", err)
		}
	}
}

// Close stops the watcher
func (r *Registry) Close() {
	r.once.Do(func() {
		close(r.done)
		if r.watcher != nil {
			r.watcher.Close()
		}
	})
}

// deploymentInfo matches the JSON written by the contract deploy script
type deploymentInfo struct {
	Network         string `json:"network"`
	MockToken       string `json:"mockToken"`
	StakingContract string `json:"stakingContract"`
}

func (r *Registry) loadDeploymentFile(chainID int64, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var info deploymentInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return fmt.Errorf("invalid deployment file: %w", err)
	}

	addrs, err := parseAddresses(info.MockToken, info.StakingContract)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.entries[chainID] = addrs
	r.mu.Unlock()
	return nil
}

func parseAddresses(token, staking string) (Addresses, error) {
	if !common.IsHexAddress(token) {
		return Addresses{}, fmt.Errorf("invalid token address %q", token)
	}
	if !common.IsHexAddress(staking) {
		return Addresses{}, fmt.Errorf("invalid staking address %q", staking)
	}
	return Addresses{
		Token:   common.HexToAddress(token),
		Staking: common.HexToAddress(staking),
	}, nil
}
