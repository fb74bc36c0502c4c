package helpers

import (
	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/mathutil"
	"github.com/meridianchain/meridian/shared/params"
)

// BaseRewardQuotient derives the epoch's reward quotient from the total
// balance at stake. Rewards shrink as the square root of total stake
// grows.
func BaseRewardQuotient(totalBalance uint64) uint64 {
	return params.BeaconConfig().BaseRewardQuotient * mathutil.IntegerSquareRoot(totalBalance)
}

// BaseReward is the per-duty reward unit for a validator, one fifth of
// its effective balance divided by the epoch's reward quotient.
func BaseReward(state *types.BeaconState, idx uint64, baseRewardQuotient uint64) uint64 {
	return EffectiveBalance(state, idx) / baseRewardQuotient / 5
}

// InactivityPenalty is the quadratic leak applied to validators that
// fail their duties while finality is stalled. It grows with the number
// of epochs since the last finalized epoch.
func InactivityPenalty(state *types.BeaconState, idx uint64, baseRewardQuotient uint64, epochsSinceFinality uint64) uint64 {
	return BaseReward(state, idx, baseRewardQuotient) +
		EffectiveBalance(state, idx)*epochsSinceFinality/params.BeaconConfig().InactivityPenaltyQuotient/2
}
