package contracts

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func newMockPair() (*Token, *Staking) {
	tok := NewMockToken(testAccount)
	return tok, NewMockStaking(tok, testAccount)
}

func TestMockStaking_StakeRequiresAllowance(t *testing.T) {
	tok, st := newMockPair()
	tok.SetMockBalance(testAccount, wei(1000))

	if _, err := st.Stake(context.Background(), wei(500)); err == nil {
		t.Error("Stake without approval should fail")
	}

	tok.Approve(context.Background(), st.Address(), wei(500))
	if _, err := st.Stake(context.Background(), wei(500)); err != nil {
		t.Fatalf("Stake after approval: %v", err)
	}

	info, err := st.GetStakerInfo(context.Background(), testAccount)
	if err != nil {
		t.Fatalf("GetStakerInfo: %v", err)
	}
	if info.StakedAmount.Cmp(wei(500)) != 0 {
		t.Errorf("StakedAmount = %s, want %s", info.StakedAmount, wei(500))
	}

	balance, _ := tok.BalanceOf(context.Background(), testAccount)
	if balance.Cmp(wei(500)) != 0 {
		t.Errorf("Token balance after stake = %s, want %s", balance, wei(500))
	}
}

func TestMockStaking_UnstakeReturnsTokens(t *testing.T) {
	tok, st := newMockPair()
	tok.SetMockBalance(testAccount, wei(1000))
	tok.Approve(context.Background(), st.Address(), wei(1000))
	st.Stake(context.Background(), wei(1000))

	if _, err := st.Unstake(context.Background(), wei(400)); err != nil {
		t.Fatalf("Unstake: %v", err)
	}

	info, _ := st.GetStakerInfo(context.Background(), testAccount)
	if info.StakedAmount.Cmp(wei(600)) != 0 {
		t.Errorf("StakedAmount = %s, want %s", info.StakedAmount, wei(600))
	}
	balance, _ := tok.BalanceOf(context.Background(), testAccount)
	if balance.Cmp(wei(400)) != 0 {
		t.Errorf("Balance = %s, want %s", balance, wei(400))
	}
}

func TestMockStaking_UnstakeAboveStakeRejected(t *testing.T) {
	_, st := newMockPair()

	if _, err := st.Unstake(context.Background(), wei(1)); err == nil {
		t.Error("Unstake with no stake should fail")
	}
}

func TestMockStaking_ClaimRewards(t *testing.T) {
	tok, st := newMockPair()
	st.SetMockRewards(testAccount, wei(25))

	if _, err := st.ClaimRewards(context.Background()); err != nil {
		t.Fatalf("ClaimRewards: %v", err)
	}

	info, _ := st.GetStakerInfo(context.Background(), testAccount)
	if info.PendingRewards.Sign() != 0 {
		t.Errorf("PendingRewards after claim = %s, want 0", info.PendingRewards)
	}
	balance, _ := tok.BalanceOf(context.Background(), testAccount)
	if balance.Cmp(wei(25)) != 0 {
		t.Errorf("Balance after claim = %s, want %s", balance, wei(25))
	}
}

func TestMockStaking_ClaimWithNothingPending(t *testing.T) {
	_, st := newMockPair()

	if _, err := st.ClaimRewards(context.Background()); err == nil {
		t.Error("Claim with zero rewards should fail")
	}
}

func TestMockStaking_TotalStakedSumsAllAccounts(t *testing.T) {
	other := common.HexToAddress("0x9999999999999999999999999999999999999999")

	tokA := NewMockToken(testAccount)
	stA := NewMockStaking(tokA, testAccount)
	tokA.SetMockBalance(testAccount, wei(100))
	tokA.Approve(context.Background(), stA.Address(), wei(100))
	stA.Stake(context.Background(), wei(100))

	// Simulate a second staker directly in mock state
	stA.mockMu.Lock()
	stA.mockStakes[other] = wei(300)
	stA.mockMu.Unlock()

	total, err := stA.TotalStaked(context.Background())
	if err != nil {
		t.Fatalf("TotalStaked: %v", err)
	}
	if total.Cmp(wei(400)) != 0 {
		t.Errorf("TotalStaked = %s, want %s", total, wei(400))
	}
}

func TestMockStaking_RewardRate(t *testing.T) {
	_, st := newMockPair()

	rate, err := st.RewardRate(context.Background())
	if err != nil {
		t.Fatalf("RewardRate: %v", err)
	}
	if rate.Cmp(big.NewInt(500)) != 0 {
		t.Errorf("Default mock rate = %s, want 500", rate)
	}

	st.SetMockRewardRate(big.NewInt(1200))
	rate, _ = st.RewardRate(context.Background())
	if rate.Cmp(big.NewInt(1200)) != 0 {
		t.Errorf("Rate = %s, want 1200", rate)
	}
}

func TestNewStaking_RequiresClient(t *testing.T) {
	if _, err := NewStaking(nil, nil, mockStakingAddr); err == nil {
		t.Error("NewStaking with nil client should fail")
	}
}
