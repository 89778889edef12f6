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

// Token provides an interface to the MST test token contract
type Token struct {
	chainClient  *chain.Client
	contract     *bind.BoundContract
	contractABI  abi.ABI
	contractAddr common.Address
	mockMode     bool

	// Mock state
	mockOwner      common.Address
	mockBalances   map[common.Address]*big.Int
	mockAllowances map[common.Address]map[common.Address]*big.Int
	mockMu         sync.RWMutex
}

// NewToken creates a new token contract client
func NewToken(chainClient *chain.Client, contractAddr common.Address) (*Token, error) {
	if chainClient == nil {
		return nil, fmt.Errorf("chain client is required (use NewMockToken for testing)")
	}
	if !chainClient.IsConnected() {
		return nil, fmt.Errorf("chain client not connected to RPC")
	}

	parsedABI, err := abi.JSON(strings.NewReader(TokenABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}

	client := chainClient.Client()
	return &Token{
		chainClient:  chainClient,
		contractABI:  parsedABI,
		contractAddr: contractAddr,
		contract:     bind.NewBoundContract(contractAddr, parsedABI, client, client, client),
	}, nil
}

// NewMockToken creates a mock token contract for testing. Writes act on
// behalf of owner, mirroring how the real contract sees msg.sender.
func NewMockToken(owner common.Address) *Token {
	return &Token{
		mockMode:       true,
		mockOwner:      owner,
		mockBalances:   make(map[common.Address]*big.Int),
		mockAllowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// IsMockMode returns whether running in mock mode
func (t *Token) IsMockMode() bool {
	return t.mockMode
}

// Address returns the token contract address
func (t *Token) Address() common.Address {
	return t.contractAddr
}

// BalanceOf returns the token balance for an address
func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	if t.mockMode {
		t.mockMu.RLock()
		defer t.mockMu.RUnlock()
		balance, exists := t.mockBalances[account]
		if !exists {
			return big.NewInt(0), nil
		}
		return new(big.Int).Set(balance), nil
	}

	var result []interface{}
	err := t.contract.Call(&bind.CallOpts{Context: ctx}, &result, "balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	if len(result) == 0 {
		return big.NewInt(0), nil
	}
	if balance, ok := result[0].(*big.Int); ok {
		return balance, nil
	}
	return big.NewInt(0), nil
}

// Allowance returns the amount a spender may transfer on behalf of owner
func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	if t.mockMode {
		t.mockMu.RLock()
		defer t.mockMu.RUnlock()
		if ownerAllowances, exists := t.mockAllowances[owner]; exists {
			if allowance, ok := ownerAllowances[spender]; ok {
				return new(big.Int).Set(allowance), nil
			}
		}
		return big.NewInt(0), nil
	}

	var result []interface{}
	err := t.contract.Call(&bind.CallOpts{Context: ctx}, &result, "allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("failed to get allowance: %w", err)
	}

	if len(result) == 0 {
		return big.NewInt(0), nil
	}
	if allowance, ok := result[0].(*big.Int); ok {
		return allowance, nil
	}
	return big.NewInt(0), nil
}

// Approve approves a spender to spend exactly amount tokens
func (t *Token) Approve(ctx context.Context, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	if t.mockMode {
		return t.mockApprove(spender, amount)
	}

	auth, err := t.chainClient.GetTransactOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction options: %w", err)
	}

	tx, err := t.contract.Transact(auth, "approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to approve: %w", err)
	}

	return tx, nil
}

func (t *Token) mockApprove(spender common.Address, amount *big.Int) (*types.Transaction, error) {
	t.mockMu.Lock()
	defer t.mockMu.Unlock()

	if _, exists := t.mockAllowances[t.mockOwner]; !exists {
		t.mockAllowances[t.mockOwner] = make(map[common.Address]*big.Int)
	}
	t.mockAllowances[t.mockOwner][spender] = new(big.Int).Set(amount)

	logging.Debug("mock approve",
		"owner", t.mockOwner.Hex(), "spender", spender.Hex(), "amount", amount.String())
	return nil, nil
}

// Mint mints test tokens to the caller
func (t *Token) Mint(ctx context.Context, amount *big.Int) (*types.Transaction, error) {
	if t.mockMode {
		return t.mockMint(amount)
	}

	auth, err := t.chainClient.GetTransactOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction options: %w", err)
	}

	tx, err := t.contract.Transact(auth, "mint", amount)
	if err != nil {
		return nil, fmt.Errorf("failed to mint: %w", err)
	}

	return tx, nil
}

func (t *Token) mockMint(amount *big.Int) (*types.Transaction, error) {
	t.mockMu.Lock()
	defer t.mockMu.Unlock()

	current, exists := t.mockBalances[t.mockOwner]
	if !exists {
		t.mockBalances[t.mockOwner] = new(big.Int).Set(amount)
	} else {
		t.mockBalances[t.mockOwner] = new(big.Int).Add(current, amount)
	}

	logging.Debug("mock mint", "account", t.mockOwner.Hex(), "amount", amount.String())
	return nil, nil
}

// Transfer transfers tokens to an address
func (t *Token) Transfer(ctx context.Context, to common.Address, amount *big.Int) (*types.Transaction, error) {
	if t.mockMode {
		return t.mockTransfer(to, amount)
	}

	auth, err := t.chainClient.GetTransactOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction options: %w", err)
	}

	tx, err := t.contract.Transact(auth, "transfer", to, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to transfer: %w", err)
	}

	return tx, nil
}

func (t *Token) mockTransfer(to common.Address, amount *big.Int) (*types.Transaction, error) {
	t.mockMu.Lock()
	defer t.mockMu.Unlock()

	balance, exists := t.mockBalances[t.mockOwner]
	if !exists || balance.Cmp(amount) < 0 {
		return nil, fmt.Errorf("insufficient balance")
	}

	t.mockBalances[t.mockOwner] = new(big.Int).Sub(balance, amount)

	toBalance, exists := t.mockBalances[to]
	if !exists {
		t.mockBalances[to] = new(big.Int).Set(amount)
	} else {
		t.mockBalances[to] = new(big.Int).Add(toBalance, amount)
	}

	return nil, nil
}

// SetMockBalance sets a mock balance for testing
func (t *Token) SetMockBalance(account common.Address, amount *big.Int) {
	if !t.mockMode {
		return
	}
	t.mockMu.Lock()
	defer t.mockMu.Unlock()
	t.mockBalances[account] = new(big.Int).Set(amount)
}

// mockSpendFrom consumes allowance and moves balance from owner to spender,
// emulating the token-side effect of a staking contract's transferFrom.
func (t *Token) mockSpendFrom(owner, spender common.Address, amount *big.Int) error {
	if !t.mockMode {
		return fmt.Errorf("mockSpendFrom requires mock mode")
	}
	t.mockMu.Lock()
	defer t.mockMu.Unlock()

	allowance := big.NewInt(0)
	if ownerAllowances, exists := t.mockAllowances[owner]; exists {
		if a, ok := ownerAllowances[spender]; ok {
			allowance = a
		}
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient allowance")
	}

	balance, exists := t.mockBalances[owner]
	if !exists || balance.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance")
	}

	t.mockBalances[owner] = new(big.Int).Sub(balance, amount)
	t.mockAllowances[owner][spender] = new(big.Int).Sub(allowance, amount)

	spenderBalance, exists := t.mockBalances[spender]
	if !exists {
		t.mockBalances[spender] = new(big.Int).Set(amount)
	} else {
		t.mockBalances[spender] = new(big.Int).Add(spenderBalance, amount)
	}
	return nil
}

// mockCredit adds balance to an account (used by mock unstake/claim).
func (t *Token) mockCredit(account common.Address, amount *big.Int) {
	if !t.mockMode {
		return
	}
	t.mockMu.Lock()
	defer t.mockMu.Unlock()

	current, exists := t.mockBalances[account]
	if !exists {
		t.mockBalances[account] = new(big.Int).Set(amount)
	} else {
		t.mockBalances[account] = new(big.Int).Add(current, amount)
	}
}
