package orchestrator

import (
	"math/big"

	"github.com/stakepilot/stakepilot/internal/contracts"
)

// DerivedView is the display-ready projection of a Snapshot. Amounts are
// formatted in whole tokens; the *Known flags distinguish a loaded zero from
// a value that was never read.
type DerivedView struct {
	Balance     string `json:"balance"`
	Staked      string `json:"staked"`
	Rewards     string `json:"rewards"`
	Allowance   string `json:"allowance"`
	TotalStaked string `json:"total_staked"`

	BalanceKnown     bool `json:"balance_known"`
	StakedKnown      bool `json:"staked_known"`
	RewardsKnown     bool `json:"rewards_known"`
	AllowanceKnown   bool `json:"allowance_known"`
	TotalStakedKnown bool `json:"total_staked_known"`
	RateKnown        bool `json:"rate_known"`

	APYPercent       float64 `json:"apy_percent"`
	PoolSharePercent float64 `json:"pool_share_percent"`
	NeedsApproval    bool    `json:"needs_approval"`
}

// ComputeAPY converts the contract's reward rate to a display percentage.
// The rate divides by 100: a rate of 500 is 5%. Unknown rates display as 0.
func ComputeAPY(rate *big.Int) float64 {
	if rate == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(rate).Float64()
	return f / 100
}

// ComputePoolShare returns the account's share of the pool as a percentage.
// It is 0 when either value is unknown or the pool is empty, never NaN.
func ComputePoolShare(staked, total *big.Int) float64 {
	if staked == nil || total == nil || total.Sign() == 0 {
		return 0
	}
	share := new(big.Float).Quo(
		new(big.Float).SetInt(staked),
		new(big.Float).SetInt(total),
	)
	f, _ := share.Float64()
	return f * 100
}

// NeedsApproval reports whether an approval transaction must precede staking
// the requested amount. An unknown allowance requires approval; a zero or
// unknown request does not.
func NeedsApproval(allowance, requested *big.Int) bool {
	if requested == nil || requested.Sign() <= 0 {
		return false
	}
	if allowance == nil {
		return true
	}
	return allowance.Cmp(requested) < 0
}

// DeriveView computes the display projection for a snapshot. stakeInput is
// the user's pending stake amount in whole tokens; an empty or unparsable
// input derives no approval requirement.
func DeriveView(snap Snapshot, stakeInput string) DerivedView {
	view := DerivedView{
		Balance:     contracts.FormatUnits(snap.Balance),
		Staked:      contracts.FormatUnits(snap.Staked),
		Rewards:     contracts.FormatUnits(snap.Rewards),
		Allowance:   contracts.FormatUnits(snap.Allowance),
		TotalStaked: contracts.FormatUnits(snap.TotalStaked),

		BalanceKnown:     snap.Balance != nil,
		StakedKnown:      snap.Staked != nil,
		RewardsKnown:     snap.Rewards != nil,
		AllowanceKnown:   snap.Allowance != nil,
		TotalStakedKnown: snap.TotalStaked != nil,
		RateKnown:        snap.RewardRate != nil,

		APYPercent:       ComputeAPY(snap.RewardRate),
		PoolSharePercent: ComputePoolShare(snap.Staked, snap.TotalStaked),
	}

	if stakeInput != "" {
		if requested, err := contracts.ParseUnits(stakeInput); err == nil {
			view.NeedsApproval = NeedsApproval(snap.Allowance, requested)
		}
	}
	return view
}
