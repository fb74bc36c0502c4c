package helpers

import (
	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/params"
)

// ActiveValidatorIndices returns the indices of validators active at
// the given epoch, in registry order.
func ActiveValidatorIndices(registry []*types.Validator, epoch uint64) []uint64 {
	var indices []uint64
	for i, v := range registry {
		if v.IsActive(epoch) {
			indices = append(indices, uint64(i))
		}
	}
	return indices
}

// EffectiveBalance is the validator's stake counted for consensus
// purposes, capped at the maximum deposit amount.
func EffectiveBalance(state *types.BeaconState, idx uint64) uint64 {
	if state.ValidatorBalances[idx] > params.BeaconConfig().MaxDepositAmount {
		return params.BeaconConfig().MaxDepositAmount
	}
	return state.ValidatorBalances[idx]
}

// TotalBalance sums the effective balances of the given validators.
func TotalBalance(state *types.BeaconState, indices []uint64) uint64 {
	var total uint64
	for _, idx := range indices {
		total += EffectiveBalance(state, idx)
	}
	return total
}
