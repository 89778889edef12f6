package orchestrator

import (
	"math/big"
	"time"
)

// Snapshot holds the last values read from the chain. A nil big.Int means
// the value has not been loaded yet (or its last read failed); nil is never
// conflated with zero.
type Snapshot struct {
	Balance     *big.Int
	Staked      *big.Int
	Rewards     *big.Int
	Allowance   *big.Int
	TotalStaked *big.Int
	RewardRate  *big.Int

	UpdatedAt time.Time
}

// Clone returns a deep copy so callers can hold a snapshot without racing
// against the next reload.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Balance:     cloneBig(s.Balance),
		Staked:      cloneBig(s.Staked),
		Rewards:     cloneBig(s.Rewards),
		Allowance:   cloneBig(s.Allowance),
		TotalStaked: cloneBig(s.TotalStaked),
		RewardRate:  cloneBig(s.RewardRate),
		UpdatedAt:   s.UpdatedAt,
	}
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
