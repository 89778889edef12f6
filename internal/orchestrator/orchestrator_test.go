package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/goleak"

	"github.com/stakepilot/stakepilot/internal/contracts"
	"github.com/stakepilot/stakepilot/internal/metrics"
)

var testAccount = common.HexToAddress("0x1234567890123456789012345678901234567890")

func newTestOrchestrator(t *testing.T) (*Orchestrator, *contracts.Token, *contracts.Staking) {
	t.Helper()

	token := contracts.NewMockToken(testAccount)
	staking := contracts.NewMockStaking(token, testAccount)

	o, err := New(nil, token, staking, Config{
		Account: testAccount,
		Metrics: metrics.NewCollector(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(o.Close)
	return o, token, staking
}

// waitFor polls until cond holds or the deadline passes. Mock transactions
// settle synchronously but the refresh that follows runs on the coordinator
// goroutine.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestOrchestrator_InitialLoadIsKnownZero(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	view := o.View("")
	if !view.BalanceKnown || !view.StakedKnown || !view.RateKnown {
		t.Error("Start should load every value")
	}
	if view.Balance != "0" || view.Staked != "0" {
		t.Errorf("Fresh account shows balance %q staked %q, want zeros", view.Balance, view.Staked)
	}
	if view.APYPercent != 5 {
		t.Errorf("APY = %v, want 5 from the default rate", view.APYPercent)
	}
}

func TestOrchestrator_MintApproveStakeFlow(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	if err := o.Mint(ctx, "1000"); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	waitFor(t, "minted balance", func() bool {
		return o.View("").Balance == "1000"
	})

	if !o.View("500").NeedsApproval {
		t.Error("Stake of 500 with no allowance must need approval")
	}

	if err := o.Approve(ctx, "500"); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	waitFor(t, "allowance", func() bool {
		return o.View("").Allowance == "500"
	})

	if o.View("500").NeedsApproval {
		t.Error("Stake of 500 with allowance 500 must not need approval")
	}

	if err := o.Stake(ctx, "500"); err != nil {
		t.Fatalf("Stake: %v", err)
	}
	waitFor(t, "staked amount", func() bool {
		view := o.View("")
		return view.Staked == "500" && view.Balance == "500"
	})

	view := o.View("")
	if view.PoolSharePercent != 100 {
		t.Errorf("Sole staker pool share = %v, want 100", view.PoolSharePercent)
	}
	if view.TotalStaked != "500" {
		t.Errorf("TotalStaked = %q, want 500", view.TotalStaked)
	}
}

func TestOrchestrator_StakeWithoutAllowanceFails(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	o.Mint(ctx, "100")
	waitFor(t, "balance", func() bool { return o.View("").Balance == "100" })

	if err := o.Stake(ctx, "100"); err == nil {
		t.Error("Stake without approval should fail")
	}

	// The rejected flow must release the tracker for the next attempt
	if o.PendingOps()[OpStake] {
		t.Error("Failed stake left the flow pending")
	}
}

func TestOrchestrator_ClaimRequiresKnownRewards(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	err := o.Claim(context.Background())
	if !errors.Is(err, ErrNothingToClaim) {
		t.Errorf("Claim with zero rewards = %v, want ErrNothingToClaim", err)
	}
}

func TestOrchestrator_ClaimCreditsBalance(t *testing.T) {
	o, _, staking := newTestOrchestrator(t)

	staking.SetMockRewards(testAccount, wei(25))
	o.RequestRefresh(ScopeStaker)
	waitFor(t, "rewards", func() bool { return o.View("").Rewards == "25" })

	if err := o.Claim(context.Background()); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	waitFor(t, "claimed balance", func() bool {
		view := o.View("")
		return view.Balance == "25" && view.Rewards == "0"
	})
}

func TestOrchestrator_InvalidAmountsRejected(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	for _, amount := range []string{"", "abc", "-5", "-0.5", "0", "1.2.3"} {
		if err := o.Mint(ctx, amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Mint(%q) = %v, want ErrInvalidAmount", amount, err)
		}
		if err := o.Stake(ctx, amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Stake(%q) = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestOrchestrator_SameKindIsExclusive(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	// Hold the stake flow open as an in-flight submission would
	if !o.trackers[OpStake].begin() {
		t.Fatal("Could not claim stake tracker")
	}
	defer o.trackers[OpStake].settle(nil)

	err := o.Stake(context.Background(), "1")
	if !errors.Is(err, ErrOpPending) {
		t.Errorf("Concurrent stake = %v, want ErrOpPending", err)
	}

	// A different kind is unaffected
	if err := o.Mint(context.Background(), "1"); err != nil {
		t.Errorf("Mint while stake pending: %v", err)
	}
}

func TestOrchestrator_SubscribeObservesTransitions(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	events, cancel := o.Subscribe()
	defer cancel()

	if err := o.Mint(context.Background(), "10"); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	var states []OpState
	deadline := time.After(2 * time.Second)
	for len(states) < 2 {
		select {
		case ev := <-events:
			if ev.Kind != OpMint {
				t.Errorf("Event kind = %v, want mint", ev.Kind)
			}
			states = append(states, ev.State)
		case <-deadline:
			t.Fatalf("Saw states %v, want submitting then settled", states)
		}
	}
	if states[0] != StateSubmitting || states[1] != StateSettled {
		t.Errorf("States = %v, want [submitting settled]", states)
	}
}

func TestOrchestrator_CloseStopsBackgroundWork(t *testing.T) {
	defer goleak.VerifyNone(t)

	token := contracts.NewMockToken(testAccount)
	staking := contracts.NewMockStaking(token, testAccount)
	o, err := New(nil, token, staking, Config{Account: testAccount})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	events, _ := o.Subscribe()
	o.Close()
	o.Close() // idempotent

	if _, open := <-events; open {
		t.Error("Close must close subscriber channels")
	}
}

func TestOrchestrator_NoAccountLeavesBalancesUnknown(t *testing.T) {
	token := contracts.NewMockToken(testAccount)
	staking := contracts.NewMockStaking(token, testAccount)

	// Read-only session without a wallet: Account stays the zero value.
	o, err := New(nil, token, staking, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := o.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(o.Close)

	view := o.View("")
	if view.BalanceKnown || view.StakedKnown || view.RewardsKnown || view.AllowanceKnown {
		t.Error("Account-scoped values must stay unknown, not read the zero address")
	}
	if !view.RateKnown || !view.TotalStakedKnown {
		t.Error("Pool values are global and should still load")
	}
}

func TestOrchestrator_NoWatchersAfterCloseBegins(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	if !o.addWatcher() {
		t.Fatal("Running orchestrator should accept watchers")
	}
	o.wg.Done()

	o.Close()
	if o.addWatcher() {
		t.Error("Closed orchestrator must refuse new watchers")
	}
}

func TestNew_RequiresContracts(t *testing.T) {
	if _, err := New(nil, nil, nil, Config{}); err == nil {
		t.Error("New without contracts should fail")
	}
}
