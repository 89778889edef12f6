package orchestrator

import (
	"math/big"
	"testing"
)

func wei(tokens int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(tokens),
		new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func TestComputeAPY(t *testing.T) {
	cases := []struct {
		rate *big.Int
		want float64
	}{
		{big.NewInt(500), 5},
		{big.NewInt(1250), 12.5},
		{big.NewInt(0), 0},
		{nil, 0},
	}
	for _, c := range cases {
		if got := ComputeAPY(c.rate); got != c.want {
			t.Errorf("ComputeAPY(%v) = %v, want %v", c.rate, got, c.want)
		}
	}
}

func TestComputePoolShare(t *testing.T) {
	cases := []struct {
		name          string
		staked, total *big.Int
		want          float64
	}{
		{"quarter", wei(500), wei(2000), 25},
		{"full pool", wei(100), wei(100), 100},
		{"empty pool", wei(0), wei(0), 0},
		{"unknown total", wei(500), nil, 0},
		{"unknown stake", nil, wei(2000), 0},
	}
	for _, c := range cases {
		if got := ComputePoolShare(c.staked, c.total); got != c.want {
			t.Errorf("%s: ComputePoolShare = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestComputePoolShare_Bounds(t *testing.T) {
	got := ComputePoolShare(wei(1), wei(3))
	if got <= 0 || got >= 100 {
		t.Errorf("Share of 1/3 pool = %v, want in (0, 100)", got)
	}
}

func TestNeedsApproval(t *testing.T) {
	cases := []struct {
		name                 string
		allowance, requested *big.Int
		want                 bool
	}{
		{"exactly covered", wei(500), wei(500), false},
		{"one short", wei(500), new(big.Int).Add(wei(500), big.NewInt(1)), true},
		{"unknown allowance", nil, wei(1), true},
		{"zero request", wei(0), big.NewInt(0), false},
		{"unknown request", wei(500), nil, false},
		{"zero allowance", big.NewInt(0), wei(1), true},
	}
	for _, c := range cases {
		if got := NeedsApproval(c.allowance, c.requested); got != c.want {
			t.Errorf("%s: NeedsApproval = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestDeriveView_UnknownIsNotZero(t *testing.T) {
	view := DeriveView(Snapshot{}, "")

	if view.BalanceKnown || view.StakedKnown || view.RewardsKnown ||
		view.AllowanceKnown || view.TotalStakedKnown || view.RateKnown {
		t.Error("Empty snapshot must derive all values as unknown")
	}
	if view.Balance != "0" {
		t.Errorf("Unknown balance formats as %q, want 0 placeholder", view.Balance)
	}
	if view.APYPercent != 0 || view.PoolSharePercent != 0 {
		t.Error("Unknown rates must derive to 0, not NaN")
	}
}

func TestDeriveView_LoadedZeroIsKnown(t *testing.T) {
	view := DeriveView(Snapshot{Balance: big.NewInt(0)}, "")
	if !view.BalanceKnown {
		t.Error("A loaded zero balance is known, not unknown")
	}
}

func TestDeriveView_StakeInputDrivesApproval(t *testing.T) {
	snap := Snapshot{Allowance: wei(500)}

	if DeriveView(snap, "200").NeedsApproval {
		t.Error("Covered stake must not need approval")
	}
	if !DeriveView(snap, "600").NeedsApproval {
		t.Error("Stake above allowance must need approval")
	}
	if DeriveView(snap, "abc").NeedsApproval {
		t.Error("Unparsable input must not need approval")
	}
	if DeriveView(snap, "").NeedsApproval {
		t.Error("Empty input must not need approval")
	}
}

func TestDeriveView_Formatting(t *testing.T) {
	view := DeriveView(Snapshot{
		Balance:     wei(1000),
		Staked:      wei(500),
		TotalStaked: wei(2000),
		RewardRate:  big.NewInt(500),
	}, "")

	if view.Balance != "1000" {
		t.Errorf("Balance = %q, want 1000", view.Balance)
	}
	if view.APYPercent != 5 {
		t.Errorf("APYPercent = %v, want 5", view.APYPercent)
	}
	if view.PoolSharePercent != 25 {
		t.Errorf("PoolSharePercent = %v, want 25", view.PoolSharePercent)
	}
}
