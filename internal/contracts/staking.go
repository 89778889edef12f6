package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stakepilot/stakepilot/internal/chain"
	"github.com/stakepilot/stakepilot/internal/logging"
)

// StakerInfo holds the per-account staking snapshot. Both fields come from a
// single getStakerInfo call so they reflect the same block.
type StakerInfo struct {
	StakedAmount   *big.Int
	PendingRewards *big.Int
}

// Staking provides an interface to the staking contract
type Staking struct {
	chainClient  *chain.Client
	token        *Token
	contract     *bind.BoundContract
	contractABI  abi.ABI
	contractAddr common.Address
	mockMode     bool

	// Mock state
	mockOwner      common.Address
	mockStakes     map[common.Address]*big.Int
	mockRewards    map[common.Address]*big.Int
	mockRewardRate *big.Int
	mockMu         sync.RWMutex
}

// mockStakingAddr stands in for the deployed contract address in mock mode.
var mockStakingAddr = common.HexToAddress("0x00000000000000000000000000000000000057a4")

// NewStaking creates a new staking contract client
func NewStaking(chainClient *chain.Client, token *Token, contractAddr common.Address) (*Staking, error) {
	if chainClient == nil {
		return nil, fmt.Errorf("chain client is required (use NewMockStaking for testing)")
	}
	if !chainClient.IsConnected() {
		return nil, fmt.Errorf("chain client not connected to RPC")
	}

	parsedABI, err := abi.JSON(strings.NewReader(StakingABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse staking ABI: %w", err)
	}

	client := chainClient.Client()
	return &Staking{
		chainClient:  chainClient,
		token:        token,
		contractABI:  parsedABI,
		contractAddr: contractAddr,
		contract:     bind.NewBoundContract(contractAddr, parsedABI, client, client, client),
	}, nil
}

// NewMockStaking creates a mock staking contract for testing. When a mock
// token is supplied, stake/unstake/claim move balances through it so the
// allowance-then-stake workflow behaves like the real contract pair.
func NewMockStaking(token *Token, owner common.Address) *Staking {
	return &Staking{
		mockMode:       true,
		token:          token,
		contractAddr:   mockStakingAddr,
		mockOwner:      owner,
		mockStakes:     make(map[common.Address]*big.Int),
		mockRewards:    make(map[common.Address]*big.Int),
		mockRewardRate: big.NewInt(500), // 5% APY
	}
}

// IsMockMode returns whether running in mock mode
func (s *Staking) IsMockMode() bool {
	return s.mockMode
}

// Address returns the staking contract address
func (s *Staking) Address() common.Address {
	return s.contractAddr
}

// GetStakerInfo returns the staked amount and pending rewards for an account
func (s *Staking) GetStakerInfo(ctx context.Context, account common.Address) (*StakerInfo, error) {
	if s.mockMode {
		s.mockMu.RLock()
		defer s.mockMu.RUnlock()
		info := &StakerInfo{
			StakedAmount:   big.NewInt(0),
			PendingRewards: big.NewInt(0),
		}
		if stake, exists := s.mockStakes[account]; exists {
			info.StakedAmount = new(big.Int).Set(stake)
		}
		if rewards, exists := s.mockRewards[account]; exists {
			info.PendingRewards = new(big.Int).Set(rewards)
		}
		return info, nil
	}

	var result []interface{}
	err := s.contract.Call(&bind.CallOpts{Context: ctx}, &result, "getStakerInfo", account)
	if err != nil {
		return nil, fmt.Errorf("failed to get staker info: %w", err)
	}

	info := &StakerInfo{
		StakedAmount:   big.NewInt(0),
		PendingRewards: big.NewInt(0),
	}
	if len(result) > 0 {
		if staked, ok := result[0].(*big.Int); ok {
			info.StakedAmount = staked
		}
	}
	if len(result) > 1 {
		if rewards, ok := result[1].(*big.Int); ok {
			info.PendingRewards = rewards
		}
	}
	return info, nil
}

// TotalStaked returns the total staked tokens across all accounts
func (s *Staking) TotalStaked(ctx context.Context) (*big.Int, error) {
	if s.mockMode {
		s.mockMu.RLock()
		defer s.mockMu.RUnlock()
		total := big.NewInt(0)
		for _, stake := range s.mockStakes {
			total.Add(total, stake)
		}
		return total, nil
	}

	var result []interface{}
	err := s.contract.Call(&bind.CallOpts{Context: ctx}, &result, "totalStaked")
	if err != nil {
		return nil, fmt.Errorf("failed to get total staked: %w", err)
	}

	if len(result) == 0 {
		return big.NewInt(0), nil
	}
	if total, ok := result[0].(*big.Int); ok {
		return total, nil
	}
	return big.NewInt(0), nil
}

// RewardRate returns the contract's reward rate. The unit is the contract's:
// a basis-point-like value that divides by 100 to a display percentage.
func (s *Staking) RewardRate(ctx context.Context) (*big.Int, error) {
	if s.mockMode {
		s.mockMu.RLock()
		defer s.mockMu.RUnlock()
		return new(big.Int).Set(s.mockRewardRate), nil
	}

	var result []interface{}
	err := s.contract.Call(&bind.CallOpts{Context: ctx}, &result, "rewardRate")
	if err != nil {
		return nil, fmt.Errorf("failed to get reward rate: %w", err)
	}

	if len(result) == 0 {
		return big.NewInt(0), nil
	}
	if rate, ok := result[0].(*big.Int); ok {
		return rate, nil
	}
	return big.NewInt(0), nil
}

// Stake stakes tokens. The caller must have approved the staking contract
// for at least amount beforehand; this method deliberately does not approve
// on the caller's behalf.
func (s *Staking) Stake(ctx context.Context, amount *big.Int) (*types.Transaction, error) {
	if s.mockMode {
		return s.mockStake(amount)
	}

	auth, err := s.chainClient.GetTransactOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction options: %w", err)
	}

	tx, err := s.contract.Transact(auth, "stake", amount)
	if err != nil {
		return nil, fmt.Errorf("failed to stake: %w", err)
	}

	return tx, nil
}

func (s *Staking) mockStake(amount *big.Int) (*types.Transaction, error) {
	// Pull tokens through the mock token first, like the contract's
	// transferFrom; this enforces the allowance workflow in tests.
	if s.token != nil && s.token.IsMockMode() {
		if err := s.token.mockSpendFrom(s.mockOwner, s.contractAddr, amount); err != nil {
			return nil, err
		}
	}

	s.mockMu.Lock()
	defer s.mockMu.Unlock()

	current, exists := s.mockStakes[s.mockOwner]
	if !exists {
		s.mockStakes[s.mockOwner] = new(big.Int).Set(amount)
	} else {
		s.mockStakes[s.mockOwner] = new(big.Int).Add(current, amount)
	}

	logging.Debug("mock stake",
		"account", s.mockOwner.Hex(), "amount", amount.String(),
		"total_stake", s.mockStakes[s.mockOwner].String())
	return nil, nil
}

// Unstake withdraws staked tokens. No client-side cap is enforced against
// the current stake; the contract is the source of truth and may reject.
func (s *Staking) Unstake(ctx context.Context, amount *big.Int) (*types.Transaction, error) {
	if s.mockMode {
		return s.mockUnstake(amount)
	}

	auth, err := s.chainClient.GetTransactOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction options: %w", err)
	}

	tx, err := s.contract.Transact(auth, "unstake", amount)
	if err != nil {
		return nil, fmt.Errorf("failed to unstake: %w", err)
	}

	return tx, nil
}

func (s *Staking) mockUnstake(amount *big.Int) (*types.Transaction, error) {
	s.mockMu.Lock()

	current, exists := s.mockStakes[s.mockOwner]
	if !exists || current.Cmp(amount) < 0 {
		s.mockMu.Unlock()
		return nil, fmt.Errorf("insufficient stake")
	}
	s.mockStakes[s.mockOwner] = new(big.Int).Sub(current, amount)
	s.mockMu.Unlock()

	if s.token != nil && s.token.IsMockMode() {
		s.token.mockCredit(s.mockOwner, amount)
	}

	logging.Debug("mock unstake", "account", s.mockOwner.Hex(), "amount", amount.String())
	return nil, nil
}

// ClaimRewards claims all pending rewards
func (s *Staking) ClaimRewards(ctx context.Context) (*types.Transaction, error) {
	if s.mockMode {
		return s.mockClaimRewards()
	}

	auth, err := s.chainClient.GetTransactOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction options: %w", err)
	}

	tx, err := s.contract.Transact(auth, "claimRewards")
	if err != nil {
		return nil, fmt.Errorf("failed to claim rewards: %w", err)
	}

	return tx, nil
}

func (s *Staking) mockClaimRewards() (*types.Transaction, error) {
	s.mockMu.Lock()

	rewards, exists := s.mockRewards[s.mockOwner]
	if !exists || rewards.Sign() == 0 {
		s.mockMu.Unlock()
		return nil, fmt.Errorf("no rewards to claim")
	}
	claimed := new(big.Int).Set(rewards)
	s.mockRewards[s.mockOwner] = big.NewInt(0)
	s.mockMu.Unlock()

	if s.token != nil && s.token.IsMockMode() {
		s.token.mockCredit(s.mockOwner, claimed)
	}

	logging.Debug("mock claim", "account", s.mockOwner.Hex(), "amount", claimed.String())
	return nil, nil
}

// SetMockRewards sets pending rewards for an account in mock mode
func (s *Staking) SetMockRewards(account common.Address, amount *big.Int) {
	if !s.mockMode {
		return
	}
	s.mockMu.Lock()
	defer s.mockMu.Unlock()
	s.mockRewards[account] = new(big.Int).Set(amount)
}

// SetMockRewardRate sets the reward rate in mock mode
func (s *Staking) SetMockRewardRate(rate *big.Int) {
	if !s.mockMode {
		return
	}
	s.mockMu.Lock()
	defer s.mockMu.Unlock()
	s.mockRewardRate = new(big.Int).Set(rate)
}
